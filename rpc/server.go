package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/preethamak/BlockDrive/auth"
	"github.com/preethamak/BlockDrive/identity"
	"github.com/preethamak/BlockDrive/registry"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	Registry *registry.Registry
	Verifier auth.Verifier
	Logger   zerolog.Logger
	Version  string
	Network  string
}

// Server is an http.Handler serving the registry methods.
type Server struct {
	reg      *registry.Registry
	verifier auth.Verifier
	log      zerolog.Logger
	version  string
	network  string
}

var _ http.Handler = (*Server)(nil)

type handlerFunc func(s *registry.Session, params []json.RawMessage) (any, error)

var handlers = map[string]handlerFunc{
	MethodAdd:         handleAdd,
	MethodDisplay:     handleDisplay,
	MethodAllow:       handleAllow,
	MethodDisallow:    handleDisallow,
	MethodShareAccess: handleShareAccess,
}

// NewServer creates a Server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		reg:      cfg.Registry,
		verifier: cfg.Verifier.WithReplayCache(),
		log:      cfg.Logger.With().Str("component", "rpc").Logger(),
		version:  cfg.Version,
		network:  cfg.Network,
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		s.reply(w, 0, nil, &Error{Code: CodeBadRequest, Message: "read body: " + err.Error()})
		return
	}
	if len(body) > maxBodySize {
		s.reply(w, 0, nil, &Error{Code: CodeBadRequest, Message: "request body too large"})
		return
	}

	var req rpcRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil || req.Method == "" {
		s.reply(w, req.ID, nil, &Error{Code: CodeBadRequest, Message: "malformed request"})
		return
	}

	result, err := s.dispatch(r, req, body)
	ev := s.log.Debug()
	if err != nil {
		ev = s.log.Info().Err(err)
	}
	ev.Str("method", req.Method).Dur("elapsed", time.Since(start)).Msg("rpc call")
	s.reply(w, req.ID, result, err)
}

func (s *Server) dispatch(r *http.Request, req rpcRequest, body []byte) (any, error) {
	if req.Method == MethodStatus {
		st, err := s.reg.Stats()
		if err != nil {
			return nil, err
		}
		return StatusResult{Version: s.version, Network: s.network, Stats: st}, nil
	}

	h, ok := handlers[req.Method]
	if !ok {
		return nil, &Error{Code: CodeUnknownMethod, Message: fmt.Sprintf("method %q not found", req.Method)}
	}

	creds, err := auth.ParseCredentials(
		r.Header.Get(HeaderPubKey),
		r.Header.Get(HeaderTimestamp),
		r.Header.Get(HeaderNonce),
		r.Header.Get(HeaderSignature),
	)
	if err != nil {
		return nil, err
	}
	caller, err := s.verifier.Verify(creds, req.Method, body)
	if err != nil {
		return nil, err
	}
	return h(s.reg.As(caller), req.Params)
}

func (s *Server) reply(w http.ResponseWriter, id int64, result any, err error) {
	resp := rpcResponse{ID: id}
	if err != nil {
		code := codeFor(err)
		msg := err.Error()
		if code == CodeInternal {
			s.log.Error().Err(err).Int64("id", id).Msg("internal error")
			msg = "internal error"
		}
		resp.Error = &Error{Code: code, Message: msg}
	} else {
		data, merr := json.Marshal(result)
		if merr != nil {
			s.log.Error().Err(merr).Msg("marshal result")
			resp.Error = &Error{Code: CodeInternal, Message: "internal error"}
		} else {
			resp.Result = data
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ---- params ----

func paramCount(params []json.RawMessage, n int) error {
	if len(params) != n {
		return &Error{Code: CodeBadParams, Message: fmt.Sprintf("expected %d params, got %d", n, len(params))}
	}
	return nil
}

func stringParam(params []json.RawMessage, i int, name string) (string, error) {
	var s string
	if err := json.Unmarshal(params[i], &s); err != nil {
		return "", &Error{Code: CodeBadParams, Message: fmt.Sprintf("%s: expected string", name)}
	}
	return s, nil
}

func identityParam(params []json.RawMessage, i int, name string) (identity.Identity, error) {
	s, err := stringParam(params, i, name)
	if err != nil {
		return identity.Identity{}, err
	}
	id, err := identity.Parse(s)
	if err != nil {
		return identity.Identity{}, &Error{Code: CodeBadParams, Message: fmt.Sprintf("%s: %v", name, err)}
	}
	return id, nil
}

// ---- handlers ----

// add params: [owner, reference]
func handleAdd(s *registry.Session, params []json.RawMessage) (any, error) {
	if err := paramCount(params, 2); err != nil {
		return nil, err
	}
	owner, err := identityParam(params, 0, "owner")
	if err != nil {
		return nil, err
	}
	ref, err := stringParam(params, 1, "reference")
	if err != nil {
		return nil, err
	}
	if err := s.Add(owner, ref); err != nil {
		return nil, err
	}
	return true, nil
}

// display params: [target]
func handleDisplay(s *registry.Session, params []json.RawMessage) (any, error) {
	if err := paramCount(params, 1); err != nil {
		return nil, err
	}
	target, err := identityParam(params, 0, "target")
	if err != nil {
		return nil, err
	}
	return s.Display(target)
}

func handleAllow(s *registry.Session, params []json.RawMessage) (any, error) {
	if err := paramCount(params, 1); err != nil {
		return nil, err
	}
	grantee, err := identityParam(params, 0, "grantee")
	if err != nil {
		return nil, err
	}
	if err := s.Allow(grantee); err != nil {
		return nil, err
	}
	return true, nil
}

func handleDisallow(s *registry.Session, params []json.RawMessage) (any, error) {
	if err := paramCount(params, 1); err != nil {
		return nil, err
	}
	grantee, err := identityParam(params, 0, "grantee")
	if err != nil {
		return nil, err
	}
	if err := s.Disallow(grantee); err != nil {
		return nil, err
	}
	return true, nil
}

func handleShareAccess(s *registry.Session, params []json.RawMessage) (any, error) {
	if err := paramCount(params, 0); err != nil {
		return nil, err
	}
	return s.ShareAccess()
}
