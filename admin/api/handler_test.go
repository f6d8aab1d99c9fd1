package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/bytom/federation/chain"
	"github.com/bytom/federation/voting"
)

type fakeVotingScheduler struct {
	scheduled []voting.VotingData
	err       error
}

func (f *fakeVotingScheduler) ScheduleVote(v voting.VotingData) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, v)
	return nil
}
func (f *fakeVotingScheduler) GetScheduledVotes() []voting.VotingData { return f.scheduled }
func (f *fakeVotingScheduler) GetPendingPolls() []*voting.Poll        { return nil }
func (f *fakeVotingScheduler) GetApprovedPolls() []*voting.Poll       { return nil }
func (f *fakeVotingScheduler) GetExecutedPolls() []*voting.Poll       { return nil }

type fakeFederationView struct{ multisig map[chain.PubKey]bool }

func (f *fakeFederationView) IsMultisig(pk chain.PubKey) bool { return f.multisig[pk] }

func init() { gin.SetMode(gin.TestMode) }

func newTestRouter(sched *fakeVotingScheduler, fed *fakeFederationView) *gin.Engine {
	h := NewHandler(sched, fed)
	r := gin.New()
	r.POST("/api/v1/votes/member", h.VoteMember)
	r.POST("/api/v1/votes/hash", h.VoteHash)
	return r
}

func doPost(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVoteMemberRejectsMultisigKick(t *testing.T) {
	var target chain.PubKey
	target[0] = 7
	sched := &fakeVotingScheduler{}
	fed := &fakeFederationView{multisig: map[chain.PubKey]bool{target: true}}
	r := newTestRouter(sched, fed)

	body := `{"pubkey":"` + target.String() + `","action":"kick"}`
	w := doPost(r, "/api/v1/votes/member", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Multisig members can't be voted on", resp.ErrorDetail)
	require.Empty(t, sched.scheduled)
}

func TestVoteMemberAddSchedulesVote(t *testing.T) {
	var target chain.PubKey
	target[0] = 9
	sched := &fakeVotingScheduler{}
	fed := &fakeFederationView{multisig: map[chain.PubKey]bool{}}
	r := newTestRouter(sched, fed)

	body := `{"pubkey":"` + target.String() + `","action":"add"}`
	w := doPost(r, "/api/v1/votes/member", body)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sched.scheduled, 1)
	require.Equal(t, voting.KeyAddMember, sched.scheduled[0].Key)
}

func TestVoteMemberRejectsBadAction(t *testing.T) {
	var target chain.PubKey
	target[0] = 9
	sched := &fakeVotingScheduler{}
	fed := &fakeFederationView{multisig: map[chain.PubKey]bool{}}
	r := newTestRouter(sched, fed)

	body := `{"pubkey":"` + target.String() + `","action":"nonsense"}`
	w := doPost(r, "/api/v1/votes/member", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoteHashWhitelistSchedulesVote(t *testing.T) {
	sched := &fakeVotingScheduler{}
	fed := &fakeFederationView{}
	r := newTestRouter(sched, fed)

	hash := strings.Repeat("ab", 32)
	body := `{"hash":"` + hash + `","action":"whitelist"}`
	w := doPost(r, "/api/v1/votes/hash", body)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sched.scheduled, 1)
	require.Equal(t, voting.KeyWhitelistHash, sched.scheduled[0].Key)
}

func TestVoteHashRejectsMalformedHash(t *testing.T) {
	sched := &fakeVotingScheduler{}
	fed := &fakeFederationView{}
	r := newTestRouter(sched, fed)

	body := `{"hash":"not-hex","action":"whitelist"}`
	w := doPost(r, "/api/v1/votes/hash", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
