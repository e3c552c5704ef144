package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// ToolErrorMiddleware converts tool failures (returned errors and panics)
// into error-tagged tool messages so the model can see the failure and
// self-correct instead of the whole run crashing.
type ToolErrorMiddleware struct {
	NopMiddleware
}

func (ToolErrorMiddleware) WrapToolCall(ctx context.Context, _ RunConfig, call ToolCall, handler ToolHandler) (result Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Tool %s panicked: %v", call.Name, r)
			result = errorMessage(call.Name, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	result, err = handler(ctx, call)
	if err != nil {
		log.Printf("Tool %s failed: %v", call.Name, err)
		return errorMessage(call.Name, err), nil
	}
	return result, nil
}

func errorMessage(name string, err error) Message {
	payload, _ := json.Marshal(map[string]string{
		"error":  err.Error(),
		"status": "error",
		"name":   name,
	})
	return Message{Role: RoleTool, Name: name, Content: string(payload)}
}
