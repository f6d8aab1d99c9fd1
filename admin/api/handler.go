package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bytom/federation/chain"
	"github.com/bytom/federation/errors"
	"github.com/bytom/federation/voting"
)

// VotingScheduler is the subset of *voting.Manager the admin edge drives.
type VotingScheduler interface {
	ScheduleVote(v voting.VotingData) error
	GetScheduledVotes() []voting.VotingData
	GetPendingPolls() []*voting.Poll
	GetApprovedPolls() []*voting.Poll
	GetExecutedPolls() []*voting.Poll
}

// FederationView lets the admin edge reject multisig targets before they
// ever reach ScheduleVote (§6, §7 ValidationError).
type FederationView interface {
	IsMultisig(pubKey chain.PubKey) bool
}

// Handler holds the collaborators the admin routes call into.
type Handler struct {
	voting     VotingScheduler
	federation FederationView
}

// NewHandler constructs a Handler.
func NewHandler(voting VotingScheduler, federation FederationView) *Handler {
	return &Handler{voting: voting, federation: federation}
}

type memberVoteRequest struct {
	PubKey string `json:"pubkey" binding:"required"`
	Action string `json:"action" binding:"required"` // "add" | "kick"
}

type hashVoteRequest struct {
	Hash   string `json:"hash" binding:"required"`
	Action string `json:"action" binding:"required"` // "whitelist" | "remove"
}

func respondError(c *gin.Context, err error) {
	resp, status := NewErrorResponse(err)
	c.JSON(status, resp)
}

// VoteMember handles POST /api/v1/votes/member.
func (h *Handler) VoteMember(c *gin.Context) {
	var req memberVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Validation(err.Error()))
		return
	}

	pubKey, err := chain.ParsePubKey(req.PubKey)
	if err != nil {
		respondError(c, errors.Validation("malformed pubkey: "+err.Error()))
		return
	}

	var key voting.Key
	switch req.Action {
	case "add":
		key = voting.KeyAddMember
		if h.federation.IsMultisig(pubKey) {
			respondError(c, errors.ErrMultisigNotVotable)
			return
		}
	case "kick":
		key = voting.KeyKickMember
		if h.federation.IsMultisig(pubKey) {
			respondError(c, errors.ErrMultisigNotVotable)
			return
		}
	default:
		respondError(c, errors.Validation("action must be \"add\" or \"kick\""))
		return
	}

	v := voting.VotingData{Key: key, Payload: voting.MemberPayload(pubKey)}
	if err := h.voting.ScheduleVote(v); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(nil))
}

// VoteHash handles POST /api/v1/votes/hash.
func (h *Handler) VoteHash(c *gin.Context) {
	var req hashVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Validation(err.Error()))
		return
	}

	hash, err := voting.DecodePayload32FromHex(req.Hash)
	if err != nil {
		respondError(c, errors.Validation("malformed hash: "+err.Error()))
		return
	}

	var key voting.Key
	switch req.Action {
	case "whitelist":
		key = voting.KeyWhitelistHash
	case "remove":
		key = voting.KeyRemoveHash
	default:
		respondError(c, errors.Validation("action must be \"whitelist\" or \"remove\""))
		return
	}

	v := voting.VotingData{Key: key, Payload: hash[:]}
	if err := h.voting.ScheduleVote(v); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(nil))
}

// ListScheduledVotes handles GET /api/v1/votes/scheduled.
func (h *Handler) ListScheduledVotes(c *gin.Context) {
	c.JSON(http.StatusOK, NewSuccessResponse(h.voting.GetScheduledVotes()))
}

// ListPendingPolls handles GET /api/v1/polls/pending.
func (h *Handler) ListPendingPolls(c *gin.Context) {
	c.JSON(http.StatusOK, NewSuccessResponse(h.voting.GetPendingPolls()))
}

// ListApprovedPolls handles GET /api/v1/polls/approved.
func (h *Handler) ListApprovedPolls(c *gin.Context) {
	c.JSON(http.StatusOK, NewSuccessResponse(h.voting.GetApprovedPolls()))
}

// ListExecutedPolls handles GET /api/v1/polls/executed.
func (h *Handler) ListExecutedPolls(c *gin.Context) {
	c.JSON(http.StatusOK, NewSuccessResponse(h.voting.GetExecutedPolls()))
}
