package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/chaumint/mintd/mint"
	"github.com/chaumint/mintd/types"
)

// Server wires httprouter handlers onto a mint.Controller.
type Server struct {
	controller *mint.Controller
	router     *httprouter.Router
	apiKey     string
}

// NewServer builds a Server. apiKey, if non-empty, is required on every
// request via the X-API-Key header.
func NewServer(c *mint.Controller, apiKey string) *Server {
	s := &Server{controller: c, apiKey: apiKey, router: httprouter.New()}
	s.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, Error{Message: "not found"}, http.StatusNotFound)
	})

	s.router.GET("/denominations", s.listDenominations)
	s.router.POST("/issue", s.issue)
	s.router.POST("/verify", s.verify)
	s.router.POST("/redeem", s.redeem)
	s.router.POST("/split", s.split)
	s.router.POST("/remint", s.remint)
	s.router.GET("/outstanding", s.outstandingValue)
	s.router.GET("/outstanding/by-denomination", s.outstandingByDenomination)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	RequireAPIKey(s.router, s.apiKey).ServeHTTP(w, r)
}

// tokenWire is the on-wire shape of a Token (spec §6): data as the raw
// canonical JSON payload, signature and key id alongside it. encoding/json
// base64-encodes []byte fields automatically, which is exactly the
// "big-endian byte string" framing spec §6 calls for.
type tokenWire struct {
	Data      json.RawMessage `json:"data"`
	Signature []byte          `json:"signature"`
	KeyID     string          `json:"key_id"`
}

func toWire(t types.Token) tokenWire {
	return tokenWire{Data: json.RawMessage(t.Data), Signature: t.Signature, KeyID: t.KeyID}
}

func fromWire(w tokenWire) types.Token {
	return types.Token{Data: []byte(w.Data), Signature: w.Signature, KeyID: w.KeyID}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch err {
	case types.ErrBadFormat, types.ErrBadSignature, types.ErrUnknownKey,
		types.ErrRedeemValueNotLessThanDenom, types.ErrCannotMakeChange,
		types.ErrNoActiveDenomination, types.ErrDenominationNotFound,
		types.ErrMessageTooLarge, types.ErrInvalidBlindingFactor:
		WriteError(w, Error{Message: err.Error()}, http.StatusBadRequest)
	case types.ErrAlreadySpent:
		WriteError(w, Error{Message: err.Error()}, http.StatusConflict)
	case types.ErrIssueSelfCheckFailed, types.ErrMissingKeyForActiveDenomination, types.ErrInternal:
		WriteError(w, Error{Message: "internal_error"}, http.StatusInternalServerError)
	default:
		WriteError(w, Error{Message: types.ErrServiceUnavailable.Error()}, http.StatusServiceUnavailable)
	}
}

func (s *Server) listDenominations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	denoms, err := s.controller.ListDenominations()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, denoms)
}

type issueRequest struct {
	DenominationID string `json:"denomination_id"`
	Value          uint64 `json:"value"`
	Currency       string `json:"currency"`
	TotalAmount    uint64 `json:"total_amount"`
	BatchID        string `json:"batch_id"`
}

type issueResponse struct {
	Tokens  []tokenWire  `json:"tokens"`
	Summary *mint.Summary `json:"summary,omitempty"`
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, Error{Message: types.ErrBadFormat.Error()}, http.StatusBadRequest)
		return
	}
	now := time.Now()

	if req.TotalAmount > 0 {
		currency := req.Currency
		if currency == "" {
			currency = mint.DefaultCurrency
		}
		tokens, summary, err := s.controller.IssueTotal(req.TotalAmount, currency, req.BatchID, now)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		wire := make([]tokenWire, len(tokens))
		for i, t := range tokens {
			wire[i] = toWire(t)
		}
		WriteJSON(w, issueResponse{Tokens: wire, Summary: &summary})
		return
	}

	var sel types.Selector
	switch {
	case req.DenominationID != "":
		sel = types.ByID(req.DenominationID)
	case req.Value != 0:
		currency := req.Currency
		if currency == "" {
			currency = mint.DefaultCurrency
		}
		sel = types.ByValue(req.Value, currency)
	default:
		sel = types.DefaultSelector()
	}

	tok, err := s.controller.Issue(sel, req.BatchID, now)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, issueResponse{Tokens: []tokenWire{toWire(tok)}})
}

type tokenRequest struct {
	Token tokenWire `json:"token"`
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, Error{Message: types.ErrBadFormat.Error()}, http.StatusBadRequest)
		return
	}
	res, err := s.controller.Verify(fromWire(req.Token))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, res)
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, Error{Message: types.ErrBadFormat.Error()}, http.StatusBadRequest)
		return
	}
	res, err := s.controller.Redeem(fromWire(req.Token), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, res)
}

type splitRequest struct {
	Token       tokenWire `json:"token"`
	RedeemValue uint64    `json:"redeem_value"`
}

type splitResponse struct {
	ConsumedTokenID types.TokenID `json:"consumed_token_id"`
	ChangeTokens    []tokenWire   `json:"change_tokens"`
	ChangeValue     uint64        `json:"change_value"`
}

func (s *Server) split(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, Error{Message: types.ErrBadFormat.Error()}, http.StatusBadRequest)
		return
	}
	res, err := s.controller.Split(fromWire(req.Token), req.RedeemValue, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	wire := make([]tokenWire, len(res.ChangeTokens))
	for i, t := range res.ChangeTokens {
		wire[i] = toWire(t)
	}
	WriteJSON(w, splitResponse{ConsumedTokenID: res.ConsumedTokenID, ChangeTokens: wire, ChangeValue: res.ChangeValue})
}

func (s *Server) remint(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, Error{Message: types.ErrBadFormat.Error()}, http.StatusBadRequest)
		return
	}
	tok, err := s.controller.Remint(fromWire(req.Token), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, toWire(tok))
}

type outstandingResponse struct {
	TotalValue    uint64 `json:"total_value"`
	RedeemedValue uint64 `json:"redeemed_value"`
	Value         uint64 `json:"value"`
}

func (s *Server) outstandingValue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	batchID := r.URL.Query().Get("batch_id")
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = mint.DefaultCurrency
	}
	total, redeemed, outstanding, err := s.controller.OutstandingValue(batchID, currency)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, outstandingResponse{TotalValue: total, RedeemedValue: redeemed, Value: outstanding})
}

func (s *Server) outstandingByDenomination(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = mint.DefaultCurrency
	}
	rows, err := s.controller.OutstandingByDenomination(currency)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, rows)
}
