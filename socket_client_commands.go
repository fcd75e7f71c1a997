package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// SocketClientCommands wraps a SocketClient to implement the StreamEditorCommands interface.
// This allows the REPL to use the same interface whether connected to a socket server
// or using StreamEditorCore directly.
type SocketClientCommands struct {
	client *SocketClient
	logger *zap.Logger
}

// NewSocketClientCommands creates a new socket client wrapper
func NewSocketClientCommands(client *SocketClient, logger *zap.Logger) *SocketClientCommands {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SocketClientCommands{client: client, logger: logger}
}

// call sends one action and returns the "result" member of a successful response.
func (s *SocketClientCommands) call(action string, params map[string]interface{}) (gjson.Result, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	cmdJSON, err := json.Marshal(map[string]interface{}{
		"action": action,
		"params": params,
	})
	if err != nil {
		return gjson.Result{}, err
	}

	resp, err := s.client.Execute(string(cmdJSON))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", action, err)
	}
	if !gjson.Valid(resp) {
		return gjson.Result{}, fmt.Errorf("%s: invalid response from server", action)
	}

	parsed := gjson.Parse(resp)
	if !parsed.Get("success").Bool() {
		return gjson.Result{}, errors.New(parsed.Get("error").String())
	}
	return parsed.Get("result"), nil
}

// ============================================================================
// Script Methods
// ============================================================================

// SetScript implements StreamEditorCommands.SetScript
func (s *SocketClientCommands) SetScript(script string) error {
	_, err := s.call("set_script", map[string]interface{}{"script": script})
	return err
}

// GetScript implements StreamEditorCommands.GetScript
func (s *SocketClientCommands) GetScript() string {
	result, err := s.call("get_script", nil)
	if err != nil {
		s.logger.Warn("GetScript socket error", zap.Error(err))
		return ""
	}
	return result.Get("script").String()
}

// ValidateScript implements StreamEditorCommands.ValidateScript
func (s *SocketClientCommands) ValidateScript(script string) error {
	result, err := s.call("validate_script", map[string]interface{}{"script": script})
	if err != nil {
		return err
	}
	if !result.Get("valid").Bool() {
		return errors.New(result.Get("error").String())
	}
	return nil
}

// GetProgram implements StreamEditorCommands.GetProgram
func (s *SocketClientCommands) GetProgram() []CommandInfo {
	result, err := s.call("get_program", nil)
	if err != nil {
		s.logger.Warn("GetProgram socket error", zap.Error(err))
		return nil
	}

	var infos []CommandInfo
	result.Get("commands").ForEach(func(_, value gjson.Result) bool {
		infos = append(infos, CommandInfo{
			Index:   int(value.Get("index").Int()),
			Kind:    value.Get("kind").String(),
			Address: value.Get("address").String(),
			Detail:  value.Get("detail").String(),
			Source:  value.Get("source").String(),
		})
		return true
	})
	return infos
}

// ============================================================================
// Option Methods
// ============================================================================

// SetNoAutoprint implements StreamEditorCommands.SetNoAutoprint
func (s *SocketClientCommands) SetNoAutoprint(noAutoprint bool) {
	if _, err := s.call("set_options", map[string]interface{}{"no_autoprint": noAutoprint}); err != nil {
		s.logger.Warn("SetNoAutoprint socket error", zap.Error(err))
	}
}

// GetNoAutoprint implements StreamEditorCommands.GetNoAutoprint
func (s *SocketClientCommands) GetNoAutoprint() bool {
	result, err := s.call("get_options", nil)
	if err != nil {
		s.logger.Warn("GetNoAutoprint socket error", zap.Error(err))
		return false
	}
	return result.Get("no_autoprint").Bool()
}

// ============================================================================
// Text Processing Methods
// ============================================================================

// SetInputText implements StreamEditorCommands.SetInputText
func (s *SocketClientCommands) SetInputText(text string) error {
	_, err := s.call("set_input_text", map[string]interface{}{"text": text})
	return err
}

// GetInputText implements StreamEditorCommands.GetInputText
func (s *SocketClientCommands) GetInputText() string {
	result, err := s.call("get_input_text", nil)
	if err != nil {
		s.logger.Warn("GetInputText socket error", zap.Error(err))
		return ""
	}
	return result.Get("text").String()
}

// GetOutputText implements StreamEditorCommands.GetOutputText
func (s *SocketClientCommands) GetOutputText() string {
	result, err := s.call("get_output_text", nil)
	if err != nil {
		s.logger.Warn("GetOutputText socket error", zap.Error(err))
		return ""
	}
	return result.Get("text").String()
}

// Run implements StreamEditorCommands.Run
func (s *SocketClientCommands) Run(script, input string, noAutoprint bool) (RunResult, error) {
	result, err := s.call("run", map[string]interface{}{
		"script":       script,
		"input":        input,
		"no_autoprint": noAutoprint,
	})
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{
		Output: result.Get("output").String(),
		Quit:   result.Get("quit").Bool(),
	}, nil
}
