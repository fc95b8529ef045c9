package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Action is an operator command applied to one output.
type Action string

const (
	ActionTarget  Action = "target"
	ActionEnable  Action = "enable"
	ActionDisable Action = "disable"
	// ActionOff requests state OFF, the only way out of FAULT and OVERLOAD.
	ActionOff Action = "off"
)

var errMissingValue = errors.New("missing value")

// Command is queued for the control loop, which owns all output state.
type Command struct {
	Output string
	Action Action
	Value  int32
}

// CommandResponse is the JSON body returned for a command request.
type CommandResponse struct {
	Accepted bool   `json:"accepted"`
	Output   string `json:"output"`
	Action   string `json:"action"`
	Value    int32  `json:"value,omitempty"`
	Error    string `json:"error,omitempty"`
}

func parseCommand(r *http.Request) (Command, error) {
	cmd := Command{Output: r.PathValue("name"), Action: Action(r.PathValue("action"))}
	switch cmd.Action {
	case ActionEnable, ActionDisable, ActionOff:
		return cmd, nil
	case ActionTarget:
		raw := r.FormValue("value")
		if raw == "" {
			return cmd, errMissingValue
		}
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return cmd, fmt.Errorf("invalid value %q: %w", raw, err)
		}
		cmd.Value = int32(v)
		return cmd, nil
	default:
		return cmd, fmt.Errorf("unknown action %q", cmd.Action)
	}
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := parseCommand(r)
	resp := CommandResponse{Output: cmd.Output, Action: string(cmd.Action), Value: cmd.Value}

	code := http.StatusAccepted
	switch {
	case err != nil:
		code = http.StatusBadRequest
		resp.Error = err.Error()
	case !s.known(cmd.Output):
		code = http.StatusNotFound
		resp.Error = "unknown output"
	case s.cmds == nil:
		code = http.StatusServiceUnavailable
		resp.Error = "commands disabled"
	default:
		select {
		case s.cmds <- cmd:
			resp.Accepted = true
		default:
			code = http.StatusServiceUnavailable
			resp.Error = "command queue full"
		}
	}

	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func (s *Server) known(name string) bool {
	_, ok := s.tracker.Snapshot().Output(name)
	return ok
}
