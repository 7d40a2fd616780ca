package main

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	apphandler "docdesk/internal/application/handler"
	appservice "docdesk/internal/application/service"
	dochandler "docdesk/internal/document/handler"
	docservice "docdesk/internal/document/service"
	jwttoken "docdesk/internal/jwt_token"
	"docdesk/internal/platform/config"
	"docdesk/internal/platform/metrics"
	"docdesk/pkg/domain"
	"docdesk/pkg/platform/middleware/auth"
	"docdesk/pkg/platform/middleware/request"
	"docdesk/pkg/testutil"
)

func TestRouter(t *testing.T) {
	testutil.Given(t, "a router backed by in-memory stores", func(t *testing.T) {
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		reg := metrics.NewRegistry()
		deps := &infra{}
		cfg := &config.Config{}

		documents := documentStore(deps, cfg, log)
		docs := docservice.New(documents)
		apps := appservice.New(applicationStore(deps), documents, attachmentStore(deps))
		tokens := jwttoken.NewJWTService("router-test-key", "docdesk-test")
		router := newRouter(log, reg, deps, auth.RequireAuth(jwttoken.NewJWTServiceAdapter(tokens), log),
			dochandler.New(docs, log),
			apphandler.New(apps, log),
		)

		testutil.When(t, "probing health", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))

			testutil.Then(t, "it reports ok", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				body := testutil.UnmarshalResponse[map[string]string](t, rr)
				if (*body)["http"] != "ok" {
					t.Fatalf("unexpected health body %v", *body)
				}
			})
			testutil.And(t, "the response carries a request id", func(t *testing.T) {
				if rr.Header().Get(request.HeaderRequestID) == "" {
					t.Fatal("expected a request id header")
				}
			})
		})

		testutil.When(t, "calling the API without a token", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/applications", nil))

			testutil.Then(t, "it is rejected as unauthorized", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
			})
		})

		testutil.When(t, "a seeker lists documents", func(t *testing.T) {
			token, err := tokens.GenerateAccessToken(domain.UserID(uuid.New()), domain.RoleSeeker, time.Minute)
			if err != nil {
				t.Fatal(err)
			}
			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/documents", nil), token)
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the list is empty", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				body := testutil.UnmarshalResponse[dochandler.ListDocumentsResponse](t, rr)
				if body.Count != 0 {
					t.Fatalf("expected no documents, got %d", body.Count)
				}
			})
		})

		testutil.When(t, "scraping metrics", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))

			testutil.Then(t, "http request counters are exposed", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				if !strings.Contains(rr.Body.String(), "docdesk_http_requests_total") {
					t.Fatal("expected http request metrics in scrape output")
				}
			})
		})
	})
}
