// Package api implements the federation governance core's administrative
// HTTP surface, reimplementing the teacher's admin server shape
// (federation/api/server.go, federation/api/handler.go) over this
// module's Voting Manager and Federation Manager rather than its
// cross-chain peg/warder state.
package api

import (
	"net/http"

	"github.com/bytom/federation/errors"
)

// statusSuccess/statusFail mirror the teacher's util/call_rpc.go envelope
// ("success" / "fail"), whose own Response{Status, Code, Msg, ErrorDetail,
// Data} shape is reconstructed here since the concrete source wasn't
// retrieved.
const (
	statusSuccess = "success"
	statusFail    = "fail"
)

// Response is the envelope every admin endpoint replies with.
type Response struct {
	Status      string      `json:"status"`
	Code        int         `json:"code"`
	Msg         string      `json:"msg,omitempty"`
	ErrorDetail string      `json:"error_detail,omitempty"`
	Data        interface{} `json:"data,omitempty"`
}

// NewSuccessResponse wraps data in a 200-coded success envelope.
func NewSuccessResponse(data interface{}) Response {
	return Response{Status: statusSuccess, Code: http.StatusOK, Data: data}
}

// NewErrorResponse maps err to an envelope and the HTTP status to send it
// with. ValidationError maps to 400 (caller's fault); DuplicateVote maps
// to 200, a soft confirmation that enqueues nothing; anything else is a
// 500, since by the time it reaches this edge it's
// either persistence or an invariant violation - the node is expected to
// be shutting down, not serving more requests.
func NewErrorResponse(err error) (Response, int) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.KindValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errors.KindDuplicateVote):
		status = http.StatusOK
	}
	return Response{Status: statusFail, Code: status, ErrorDetail: err.Error()}, status
}
