package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/octofit/internal/adapters/http/api"
	"github.com/okian/octofit/internal/adapters/repository"
	service "github.com/okian/octofit/internal/app"
	"github.com/okian/octofit/internal/domain/leaderboard"
	"github.com/okian/octofit/internal/domain/model"
)

type testServer struct {
	mux   *http.ServeMux
	store repository.Store
}

func newTestServer() *testServer {
	store := repository.NewMemoryStore()
	svc := service.New(store, service.WithAutoRecompute(false), service.WithBcryptCost(bcrypt.MinCost))
	return newTestServerWith(svc, store)
}

func newTestServerWith(deps api.Dependencies, store repository.Store) *testServer {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)
	return &testServer{mux: mux, store: store}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		s := newTestServer()

		Convey("When requesting the API root", func() {
			for _, path := range []string{"/", "/api/"} {
				w := s.do(http.MethodGet, path, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				links := decode[map[string]string](w)
				So(links, ShouldHaveLength, 5)
				So(links["users"], ShouldEqual, "http://example.com/api/users/")
				So(links["leaderboard"], ShouldEqual, "http://example.com/api/leaderboard/")
			}
		})

		Convey("When requesting an unknown path", func() {
			w := s.do(http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When scraping /healthz", func() {
			s.do(http.MethodGet, "/api/users/", "")
			w := s.do(http.MethodGet, "/healthz", "")

			Convey("Then the Prometheus exposition is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "octofit_tracker_http_requests_total")
			})
		})

		Convey("When asking for readiness", func() {
			w := s.do(http.MethodGet, "/readyz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]string](w)["status"], ShouldEqual, "ready")
		})

		Convey("When asking for stats", func() {
			w := s.do(http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
			stats := decode[map[string]any](w)
			So(stats["store"], ShouldEqual, "memory")
		})
	})
}

func TestServer_OversizedBody(t *testing.T) {
	Convey("Given a body over the size limit", t, func() {
		s := newTestServer()
		body := `{"name":"` + strings.Repeat("x", 1<<20) + `"}`

		Convey("Then create is rejected with 413", func() {
			w := s.do(http.MethodPost, "/api/teams/", body)
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			So(decode[map[string]string](w)["code"], ShouldEqual, "payload_too_large")
		})

		Convey("And malformed JSON is still a 400", func() {
			w := s.do(http.MethodPost, "/api/teams/", `{"name":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[map[string]string](w)["code"], ShouldEqual, "bad_request")
		})
	})
}

func TestServer_Users(t *testing.T) {
	Convey("Given an empty API", t, func() {
		s := newTestServer()

		Convey("When a user is created", func() {
			w := s.do(http.MethodPost, "/api/users/", `{"name":"Iron Man","email":"ironman@marvel.com","password":"secret","team":"Team Marvel"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			created := decode[map[string]any](w)

			Convey("Then the response has an id and no password", func() {
				So(created["_id"], ShouldNotBeEmpty)
				So(created, ShouldNotContainKey, "password")
				So(created["email"], ShouldEqual, "ironman@marvel.com")
			})

			Convey("And it can be read, listed and updated", func() {
				id := created["_id"].(string)
				w := s.do(http.MethodGet, "/api/users/"+id, "")
				So(w.Code, ShouldEqual, http.StatusOK)

				w = s.do(http.MethodGet, "/api/users", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[[]map[string]any](w), ShouldHaveLength, 1)

				w = s.do(http.MethodPut, "/api/users/"+id, `{"name":"Tony Stark","email":"ironman@marvel.com","team":"Team Marvel"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](w)["name"], ShouldEqual, "Tony Stark")

				stored, err := s.store.Users().Get(context.Background(), id)
				So(err, ShouldBeNil)
				So(service.CheckPassword(stored, "secret"), ShouldBeTrue)
			})

			Convey("And a second user with the same email conflicts", func() {
				w := s.do(http.MethodPost, "/api/users/", `{"name":"Impostor","email":"IRONMAN@marvel.com"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decode[apiError](w).Code, ShouldEqual, "conflict")
			})

			Convey("And deleting it returns 204 then 404", func() {
				id := created["_id"].(string)
				So(s.do(http.MethodDelete, "/api/users/"+id, "").Code, ShouldEqual, http.StatusNoContent)
				w := s.do(http.MethodDelete, "/api/users/"+id, "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode[apiError](w).Code, ShouldEqual, "not_found")
			})
		})

		Convey("When the body is not JSON", func() {
			w := s.do(http.MethodPost, "/api/users/", `{not json`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[apiError](w).Code, ShouldEqual, "bad_request")
		})

		Convey("When required fields are missing", func() {
			w := s.do(http.MethodPost, "/api/users/", `{"name":"No Email"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading an unknown user", func() {
			So(s.do(http.MethodGet, "/api/users/missing", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_ActivitiesAndLeaderboard(t *testing.T) {
	Convey("Given two users with activities", t, func() {
		s := newTestServer()
		ids := make([]string, 0, 2)
		for _, u := range []string{
			`{"name":"Superman","email":"superman@dc.com","team":"Team DC"}`,
			`{"name":"Batman","email":"batman@dc.com","team":"Team DC"}`,
		} {
			w := s.do(http.MethodPost, "/api/users/", u)
			So(w.Code, ShouldEqual, http.StatusCreated)
			ids = append(ids, decode[map[string]any](w)["_id"].(string))
		}
		for _, a := range []string{
			fmt.Sprintf(`{"user_id":%q,"type":"running","duration":30,"distance":12.345,"calories":500}`, ids[0]),
			fmt.Sprintf(`{"user_id":%q,"type":"cycling","duration":60,"distance":3.2,"calories":800}`, ids[1]),
			fmt.Sprintf(`{"user_id":%q,"type":"walking","duration":20,"distance":3.2,"calories":0}`, ids[0]),
		} {
			So(s.do(http.MethodPost, "/api/activities/", a).Code, ShouldEqual, http.StatusCreated)
		}
		// An activity whose user never existed.
		So(s.do(http.MethodPost, "/api/activities/", `{"user_id":"ghost","type":"yoga","duration":10,"calories":50}`).Code, ShouldEqual, http.StatusCreated)

		Convey("When listing a user's activities", func() {
			w := s.do(http.MethodGet, "/api/users/"+ids[0]+"/activities", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[[]model.Activity](w), ShouldHaveLength, 2)
			So(s.do(http.MethodGet, "/api/users/ghost/activities", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When an activity has a negative metric", func() {
			w := s.do(http.MethodPost, "/api/activities/", fmt.Sprintf(`{"user_id":%q,"type":"gym","calories":-5}`, ids[0]))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the leaderboard is recomputed", func() {
			w := s.do(http.MethodPost, "/api/leaderboard/recompute", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var resp struct {
				Entries     int                      `json:"entries"`
				Activities  int                      `json:"activities"`
				Skipped     []map[string]string      `json:"skipped"`
				Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)

			Convey("Then counts and skipped records are returned", func() {
				So(resp.Entries, ShouldEqual, 2)
				So(resp.Activities, ShouldEqual, 3)
				So(resp.Skipped, ShouldHaveLength, 1)
				So(resp.Skipped[0]["reason"], ShouldEqual, "orphan_reference")
				So(resp.Skipped[0]["user_id"], ShouldEqual, "ghost")
			})

			Convey("And the ranked leaderboard can be read", func() {
				w := s.do(http.MethodGet, "/api/leaderboard/", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				entries := decode[[]model.LeaderboardEntry](w)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].UserID, ShouldEqual, ids[1])
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[1].TotalDistance, ShouldEqual, 15.55)

				w = s.do(http.MethodGet, "/api/leaderboard/"+entries[1].ID, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[model.LeaderboardEntry](w).UserID, ShouldEqual, ids[0])
			})

			Convey("And entries cannot be written directly", func() {
				w := s.do(http.MethodPost, "/api/leaderboard/", `{"user_id":"x","rank":1}`)
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				w = s.do(http.MethodDelete, "/api/leaderboard/"+resp.Leaderboard[0].ID, "")
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestServer_TeamsAndWorkouts(t *testing.T) {
	Convey("Given an empty API", t, func() {
		s := newTestServer()

		Convey("When a team is created with members", func() {
			w := s.do(http.MethodPost, "/api/teams/", `{"name":"Team Marvel","description":"Earth's mightiest","members":["a","b"]}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			team := decode[model.Team](w)
			So(team.Members, ShouldResemble, []string{"a", "b"})

			w = s.do(http.MethodPut, "/api/teams/"+team.ID, `{"name":"Team Marvel","members":["a"]}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[model.Team](w).Members, ShouldResemble, []string{"a"})
		})

		Convey("When a workout is created", func() {
			w := s.do(http.MethodPost, "/api/workouts", `{"name":"Super Speed Cardio","type":"cardio","duration":30,"difficulty":"advanced","exercises":["sprints"]}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			wo := decode[model.Workout](w)

			So(s.do(http.MethodGet, "/api/workouts/"+wo.ID, "").Code, ShouldEqual, http.StatusOK)
			So(s.do(http.MethodDelete, "/api/workouts/"+wo.ID, "").Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("When updating an unknown workout", func() {
			w := s.do(http.MethodPut, "/api/workouts/missing", `{"name":"x"}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

// unavailableDeps fails every call the way a disconnected store would.
type unavailableDeps struct {
	*service.Service
}

func (unavailableDeps) ListUsers(context.Context) ([]model.User, error) {
	return nil, fmt.Errorf("list users: %w", repository.ErrStoreUnavailable)
}

func (unavailableDeps) Ping(context.Context) error {
	return fmt.Errorf("%w: ping: connection refused", repository.ErrStoreUnavailable)
}

func (unavailableDeps) RecomputeLeaderboard(context.Context) (leaderboard.Result, error) {
	return leaderboard.Result{}, fmt.Errorf("boom")
}

func TestServer_Failures(t *testing.T) {
	Convey("Given a server whose store is unreachable", t, func() {
		store := repository.NewMemoryStore()
		deps := unavailableDeps{Service: service.New(store, service.WithAutoRecompute(false))}
		s := newTestServerWith(deps, store)

		Convey("Then store errors map to 503", func() {
			w := s.do(http.MethodGet, "/api/users/", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode[apiError](w).Code, ShouldEqual, "store_unavailable")
		})

		Convey("Then readiness fails", func() {
			So(s.do(http.MethodGet, "/readyz", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Then unknown errors map to 500", func() {
			w := s.do(http.MethodPost, "/api/leaderboard/recompute", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode[apiError](w).Code, ShouldEqual, "internal_error")
		})
	})
}
