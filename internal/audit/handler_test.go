package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"datamod/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	store  *InMemoryStore
}

func (s *HandlerSuite) SetupTest() {
	s.store = NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	NewHandler(s.store, logger).Register(r)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) seed(n int) []Event {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	events := make([]Event, n)
	for i := range n {
		events[i] = sampleEvent("Create Random Users", base.Add(time.Duration(i)*time.Minute))
		require.NoError(s.T(), s.store.Append(context.Background(), events[i]))
	}
	return events
}

func (s *HandlerSuite) TestListRuns_Empty() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/dataModifications/runs"))

	testutil.AssertStatusOK(s.T(), rr)
	assert.JSONEq(s.T(), `{"runs":[]}`, rr.Body.String())
}

func (s *HandlerSuite) TestListRuns_Limit() {
	events := s.seed(3)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/dataModifications/runs?limit=2"))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[listRunsResponse](s.T(), rr)
	require.Len(s.T(), resp.Runs, 2)
	assert.Equal(s.T(), events[2].RunID, resp.Runs[0].RunID)
}

func (s *HandlerSuite) TestListRuns_InvalidLimit() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/dataModifications/runs?limit=zero"))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *HandlerSuite) TestGetRun() {
	events := s.seed(1)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/dataModifications/runs/"+events[0].RunID.String()))

	testutil.AssertStatusOK(s.T(), rr)
	var got map[string]any
	require.NoError(s.T(), json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(s.T(), events[0].RunID.String(), got["runId"])
	assert.Equal(s.T(), "committed", got["outcome"])
}

func (s *HandlerSuite) TestGetRun_NotFound() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/dataModifications/runs/"+uuid.NewString()))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestGetRun_InvalidID() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/dataModifications/runs/not-a-uuid"))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}
