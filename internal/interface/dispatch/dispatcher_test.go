package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/course-rewards/internal/application/distributor"
	"github.com/alem-hub/course-rewards/internal/domain/certificate"
	"github.com/alem-hub/course-rewards/internal/infrastructure/quiz"
	"github.com/alem-hub/course-rewards/internal/infrastructure/service"
	"github.com/alem-hub/course-rewards/pkg/logger"
)

type harness struct {
	dispatcher *Dispatcher
	clock      *distributor.HeightClock
	minter     *service.MemoryMinter
	progress   *service.MemoryProgress
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newLoggedHarness(t, io.Discard)
}

func newLoggedHarness(t *testing.T, out io.Writer) *harness {
	t.Helper()

	keys := quiz.NewMemoryKeys()
	require.NoError(t, keys.SetAnswerKey(context.Background(), 1, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))

	log := logger.New(logger.Options{Output: out, Level: logger.LevelDebug})
	clock := distributor.NewHeightClock(0)
	minter := service.NewMemoryMinter(nil)
	progress := service.NewMemoryProgress()

	d, err := distributor.New(distributor.DefaultConfig(), distributor.Dependencies{
		Scorer:       quiz.NewAnswerKeyScorer(keys),
		Minter:       minter,
		Progress:     progress,
		Certificates: certificate.NewSequenceGenerator("dispatch"),
		Clock:        clock,
		Logger:       log,
	})
	require.NoError(t, err)

	return &harness{
		dispatcher: NewDispatcher(d, clock, log),
		clock:      clock,
		minter:     minter,
		progress:   progress,
	}
}

func (h *harness) call(t *testing.T, caller, method string, params interface{}) Response {
	t.Helper()

	req := Request{Caller: caller, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = raw
	}
	return h.dispatcher.Handle(context.Background(), req)
}

func TestDispatcher_ClaimFlow(t *testing.T) {
	h := newHarness(t)

	resp := h.call(t, "ST1ADMIN", MethodAddCourseRewardConfig, map[string]interface{}{
		"courseId": 1, "difficulty": 3, "baseReward": 100, "passThreshold": 80,
	})
	require.True(t, resp.OK, resp.Message)

	resp = h.call(t, "ST1ALICE", MethodEnrollUser, map[string]interface{}{"courseId": 1})
	require.True(t, resp.OK)

	resp = h.call(t, "ST1ALICE", MethodIsUserEnrolled, map[string]interface{}{"user": "ST1ALICE", "courseId": 1})
	require.True(t, resp.OK)
	assert.Equal(t, true, resp.Value)

	// Eight of ten answers correct scores 80.
	resp = h.call(t, "ST1ALICE", MethodCompleteCourseAndClaim, map[string]interface{}{
		"courseId":    1,
		"quizResults": []uint64{1, 2, 3, 4, 5, 6, 7, 8, 0, 0},
		"proof":       "valid-proof",
	})
	require.True(t, resp.OK, resp.Error)
	claim, ok := resp.Value.(ClaimView)
	require.True(t, ok)
	assert.Equal(t, "10000", claim.TokensAwarded)
	assert.Equal(t, uint64(4), claim.Timestamp)
	assert.True(t, strings.HasPrefix(claim.CertificationID, certificate.Prefix))

	assert.Equal(t, "10000", h.minter.BalanceOf("ST1ALICE").Dec())
	assert.True(t, h.progress.IsCompleted("ST1ALICE", 1))

	resp = h.call(t, "ST1BOB", MethodGetTotalRewardsMinted, nil)
	require.True(t, resp.OK)
	assert.Equal(t, "10000", resp.Value)

	resp = h.call(t, "ST1BOB", MethodGetUserCompletion, map[string]interface{}{"user": "ST1ALICE", "courseId": 1})
	require.True(t, resp.OK)
	assert.Equal(t, CompletionView{Completed: true, Score: 80, Timestamp: 4, CertID: claim.CertificationID}, resp.Value)

	resp = h.call(t, "ST1ALICE", MethodCompleteCourseAndClaim, map[string]interface{}{
		"courseId":    1,
		"quizResults": []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		"proof":       "valid-proof",
	})
	assert.False(t, resp.OK)
	assert.Equal(t, "AlreadyCompleted", resp.Error)
	assert.Equal(t, uint32(1003), resp.Code)
}

func TestDispatcher_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		caller string
		method string
		params interface{}
		kind   string
		code   uint32
	}{
		{
			name:   "non-admin config",
			caller: "ST1ALICE",
			method: MethodAddCourseRewardConfig,
			params: map[string]interface{}{"courseId": 1, "difficulty": 3, "baseReward": 100, "passThreshold": 80},
			kind:   "NotAuthorized",
			code:   1013,
		},
		{
			name:   "difficulty out of range",
			caller: "ST1ADMIN",
			method: MethodAddCourseRewardConfig,
			params: map[string]interface{}{"courseId": 1, "difficulty": 6, "baseReward": 100, "passThreshold": 80},
			kind:   "InvalidDifficulty",
			code:   1012,
		},
		{
			name:   "difficulty past one byte",
			caller: "ST1ADMIN",
			method: MethodAddCourseRewardConfig,
			params: map[string]interface{}{"courseId": 1, "difficulty": 256, "baseReward": 100, "passThreshold": 80},
			kind:   "InvalidDifficulty",
			code:   1012,
		},
		{
			name:   "difficulty 300",
			caller: "ST1ADMIN",
			method: MethodAddCourseRewardConfig,
			params: map[string]interface{}{"courseId": 1, "difficulty": 300, "baseReward": 100, "passThreshold": 80},
			kind:   "InvalidDifficulty",
			code:   1012,
		},
		{
			name:   "difficulty 261 does not wrap",
			caller: "ST1ADMIN",
			method: MethodAddCourseRewardConfig,
			params: map[string]interface{}{"courseId": 1, "difficulty": 261, "baseReward": 100, "passThreshold": 80},
			kind:   "InvalidDifficulty",
			code:   1012,
		},
		{
			name:   "zero multiplier",
			caller: "ST1ADMIN",
			method: MethodSetRewardMultiplier,
			params: map[string]interface{}{"multiplier": 0},
			kind:   "InvalidValue",
			code:   1009,
		},
		{
			name:   "claim without enrollment",
			caller: "ST1ALICE",
			method: MethodCompleteCourseAndClaim,
			params: map[string]interface{}{"courseId": 1, "quizResults": make([]uint64, 10), "proof": "p"},
			kind:   "NotEnrolled",
			code:   1001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			resp := h.call(t, tt.caller, tt.method, tt.params)
			assert.False(t, resp.OK)
			assert.Equal(t, tt.kind, resp.Error)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestDispatcher_Reads(t *testing.T) {
	h := newHarness(t)

	resp := h.call(t, "ST1BOB", MethodGetCourseRewardConfig, map[string]interface{}{"courseId": 9})
	require.True(t, resp.OK)
	assert.Nil(t, resp.Value)

	resp = h.call(t, "ST1BOB", MethodGetUserCompletion, map[string]interface{}{"user": "ST1BOB", "courseId": 9})
	require.True(t, resp.OK)
	assert.Nil(t, resp.Value)

	resp = h.call(t, "ST1BOB", MethodIsUserEnrolled, map[string]interface{}{"user": "ST1BOB", "courseId": 9})
	require.True(t, resp.OK)
	assert.Equal(t, false, resp.Value)

	resp = h.call(t, "ST1BOB", MethodReconcileTotal, nil)
	require.True(t, resp.OK)
	assert.Equal(t, "0", resp.Value)
}

func TestDispatcher_BadRequests(t *testing.T) {
	h := newHarness(t)

	resp := h.call(t, "ST1ALICE", "transferAdmin", nil)
	assert.Equal(t, ErrorBadRequest, resp.Error)
	assert.Contains(t, resp.Message, "unknown method")

	resp = h.call(t, "ST1ALICE", MethodEnrollUser, nil)
	assert.Equal(t, ErrorBadRequest, resp.Error)

	resp = h.dispatcher.HandleRaw(context.Background(), []byte(`{"caller":`))
	assert.False(t, resp.OK)
	assert.Equal(t, ErrorBadRequest, resp.Error)

	resp = h.call(t, "ST1ALICE", MethodEnrollUser, map[string]interface{}{"courseId": -1})
	assert.Equal(t, ErrorBadRequest, resp.Error)
}

func TestDispatcher_RejectsMissingCaller(t *testing.T) {
	h := newHarness(t)

	resp := h.call(t, "ST1ADMIN", MethodSetAdmin, map[string]interface{}{"newAdmin": ""})
	require.True(t, resp.OK, resp.Message)

	for _, method := range []string{MethodSetRewardMultiplier, MethodEnrollUser} {
		resp = h.call(t, "", method, map[string]interface{}{"multiplier": 7, "courseId": 1})
		assert.False(t, resp.OK)
		assert.Equal(t, ErrorBadRequest, resp.Error)
		assert.Equal(t, "missing caller", resp.Message)
	}

	resp = h.dispatcher.HandleRaw(context.Background(), []byte(`{"method":"setRewardMultiplier","params":{"multiplier":7}}`))
	assert.Equal(t, ErrorBadRequest, resp.Error)

	resp = h.call(t, "ST1BOB", MethodIsUserEnrolled, map[string]interface{}{"user": "ST1BOB", "courseId": 1})
	require.True(t, resp.OK)
	assert.Equal(t, false, resp.Value)
}

func TestDispatcher_TagsLogsWithEnvelopeID(t *testing.T) {
	var buf bytes.Buffer
	h := newLoggedHarness(t, &buf)

	for _, line := range []string{
		`{"id":"env-1","caller":"ST1ADMIN","method":"addCourseRewardConfig","params":{"courseId":1,"difficulty":1,"baseReward":100,"passThreshold":80}}`,
		`{"id":"env-2","caller":"ST1ALICE","method":"enrollUser","params":{"courseId":1}}`,
		`{"id":"env-3","caller":"ST1ALICE","method":"completeCourseAndClaim","params":{"courseId":1,"quizResults":[1,2,3,4,5,6,7,8,9,10],"proof":"p"}}`,
		`{"caller":"ST1ALICE","method":"completeCourseAndClaim","params":{"courseId":1,"quizResults":[1,2,3,4,5,6,7,8,9,10],"proof":"p"}}`,
		`{"id":"env-5","caller":"ST1ALICE","method":"enrollUser","params":{"courseId":"x"}}`,
	} {
		h.dispatcher.HandleRaw(context.Background(), []byte(line))
	}

	ids := map[string]interface{}{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry logger.LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		switch entry.Message {
		case "course completed", "claim rejected", "bad request":
			ids[entry.Message] = entry.Fields[logger.RequestIDKey]
		}
		if entry.Message == "course completed" || entry.Message == "claim rejected" {
			assert.Equal(t, "distributor", entry.Fields["component"])
		}
	}

	assert.Equal(t, "env-3", ids["course completed"])
	assert.Equal(t, "env-5", ids["bad request"])
	generated, _ := ids["claim rejected"].(string)
	assert.NotEmpty(t, generated)
	assert.NotEqual(t, "env-3", generated)
}

func TestDispatcher_AdvancesClockPerEnvelope(t *testing.T) {
	h := newHarness(t)

	h.call(t, "ST1BOB", MethodGetTotalRewardsMinted, nil)
	h.call(t, "ST1BOB", "nope", nil)
	assert.Equal(t, uint64(2), h.clock.Now())
}

func TestDispatcher_Serve(t *testing.T) {
	h := newHarness(t)

	in := strings.Join([]string{
		`{"caller":"ST1ALICE","method":"enrollUser","params":{"courseId":1}}`,
		``,
		`{"caller":"ST1BOB","method":"isUserEnrolled","params":{"user":"ST1ALICE","courseId":1}}`,
		`{"caller":"ST1ALICE","method":"setRewardMultiplier","params":{"multiplier":5}}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, h.dispatcher.Serve(context.Background(), strings.NewReader(in), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"ok":true}`, lines[0])
	assert.JSONEq(t, `{"ok":true,"value":true}`, lines[1])
	assert.JSONEq(t, `{"ok":false,"error":"NotAuthorized","code":1013}`, lines[2])
}

func TestDispatcher_ServeStopsOnCancel(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := h.dispatcher.Serve(ctx, strings.NewReader(`{"caller":"a","method":"getTotalRewardsMinted"}`+"\n"), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

var _ Service = (*distributor.Distributor)(nil)
var _ Ticker = (*distributor.HeightClock)(nil)
