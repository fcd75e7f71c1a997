package main

import (
	"encoding/json"
)

// Request represents a JSON command sent to the core
type Request struct {
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// Response represents a JSON response from command execution
type Response struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// commandHelp documents the commands of the script language.
var commandHelp = []struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}{
	{"[addr]q", "print the current line and stop the whole run"},
	{"[addr]p", "print the current line"},
	{"[addr]d", "delete the current line and start the next one"},
	{"[addr]s/re/text/[g]", "replace the first (or every) match of re"},
	{"[addr]a word", "append text after the current line"},
	{"[addr]i word", "insert text before the current line"},
	{"[addr]c word", "replace the line, or a whole range, with text"},
	{":label", "define a branch target"},
	{"[addr]b [label]", "branch to label, or to the end of the script"},
	{"[addr]t [label]", "branch if a substitution was made on this line"},
}

// ExecuteCommand executes a JSON command and returns a JSON response
func (sc *StreamEditorCore) ExecuteCommand(cmdJSON string) string {
	var req Request
	if err := json.Unmarshal([]byte(cmdJSON), &req); err != nil {
		return errorResponse("Invalid JSON: " + err.Error())
	}

	switch req.Action {
	case "set_script":
		return sc.cmdSetScript(req.Params)
	case "get_script":
		return sc.cmdGetScript(req.Params)
	case "validate_script":
		return sc.cmdValidateScript(req.Params)
	case "get_program":
		return sc.cmdGetProgram(req.Params)
	case "set_options":
		return sc.cmdSetOptions(req.Params)
	case "get_options":
		return sc.cmdGetOptions(req.Params)
	case "set_input_text":
		return sc.cmdSetInputText(req.Params)
	case "get_input_text":
		return sc.cmdGetInputText(req.Params)
	case "get_output_text":
		return sc.cmdGetOutputText(req.Params)
	case "run":
		return sc.cmdRun(req.Params)
	case "list_commands":
		return sc.cmdListCommands(req.Params)
	default:
		return errorResponse("Unknown action: " + req.Action)
	}
}

// ============================================================================
// Command Handlers
// ============================================================================

func (sc *StreamEditorCore) cmdSetScript(params map[string]interface{}) string {
	script, ok := params["script"].(string)
	if !ok {
		return errorResponse("Missing required parameter: script")
	}

	if err := sc.SetScript(script); err != nil {
		return errorResponse(err.Error())
	}

	return successResponse(map[string]interface{}{
		"commands": sc.CommandCount(),
		"output":   sc.GetOutputText(),
	})
}

func (sc *StreamEditorCore) cmdGetScript(params map[string]interface{}) string {
	return successResponse(map[string]interface{}{
		"script": sc.GetScript(),
	})
}

func (sc *StreamEditorCore) cmdValidateScript(params map[string]interface{}) string {
	script, ok := params["script"].(string)
	if !ok {
		return errorResponse("Missing required parameter: script")
	}

	if err := sc.ValidateScript(script); err != nil {
		return successResponse(map[string]interface{}{
			"valid": false,
			"error": err.Error(),
		})
	}
	return successResponse(map[string]interface{}{
		"valid": true,
	})
}

func (sc *StreamEditorCore) cmdGetProgram(params map[string]interface{}) string {
	return successResponse(map[string]interface{}{
		"commands": sc.GetProgram(),
	})
}

func (sc *StreamEditorCore) cmdSetOptions(params map[string]interface{}) string {
	noAutoprint, ok := params["no_autoprint"].(bool)
	if !ok {
		return errorResponse("Missing required parameter: no_autoprint")
	}

	sc.SetNoAutoprint(noAutoprint)
	return successResponse(map[string]interface{}{
		"no_autoprint": noAutoprint,
		"output":       sc.GetOutputText(),
	})
}

func (sc *StreamEditorCore) cmdGetOptions(params map[string]interface{}) string {
	return successResponse(map[string]interface{}{
		"no_autoprint": sc.GetNoAutoprint(),
	})
}

func (sc *StreamEditorCore) cmdSetInputText(params map[string]interface{}) string {
	text := getStr(params, "text", "")
	if err := sc.SetInputText(text); err != nil {
		return errorResponse(err.Error())
	}
	return successResponse(map[string]interface{}{
		"output": sc.GetOutputText(),
	})
}

func (sc *StreamEditorCore) cmdGetInputText(params map[string]interface{}) string {
	return successResponse(map[string]interface{}{
		"text": sc.GetInputText(),
	})
}

func (sc *StreamEditorCore) cmdGetOutputText(params map[string]interface{}) string {
	return successResponse(map[string]interface{}{
		"text": sc.GetOutputText(),
	})
}

func (sc *StreamEditorCore) cmdRun(params map[string]interface{}) string {
	script, ok := params["script"].(string)
	if !ok {
		return errorResponse("Missing required parameter: script")
	}
	input := getStr(params, "input", "")
	noAutoprint, _ := params["no_autoprint"].(bool)

	result, err := sc.Run(script, input, noAutoprint)
	if err != nil {
		return errorResponse(err.Error())
	}
	return successResponse(result)
}

func (sc *StreamEditorCore) cmdListCommands(params map[string]interface{}) string {
	return successResponse(map[string]interface{}{
		"commands": commandHelp,
	})
}

// ============================================================================
// Helper Functions
// ============================================================================

// getStr safely extracts a string parameter, with a default value
func getStr(params map[string]interface{}, key, defaultValue string) string {
	if val, ok := params[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return defaultValue
}

// successResponse creates a successful response
func successResponse(result interface{}) string {
	data, _ := json.Marshal(Response{
		Success: true,
		Result:  result,
	})
	return string(data)
}

// errorResponse creates an error response
func errorResponse(errorMsg string) string {
	data, _ := json.Marshal(Response{
		Success: false,
		Error:   errorMsg,
	})
	return string(data)
}
