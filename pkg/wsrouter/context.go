package wsrouter

import (
	"context"
	"encoding/json"
)

type ctxKey int

const (
	messageTypeKey ctxKey = iota
	rawMessageKey
)

func GetMessageTypeFromCtx(ctx context.Context) string {
	messageType, ok := ctx.Value(messageTypeKey).(string)
	if !ok {
		return ""
	}

	return messageType
}

func GetRawMessageFromCtx(ctx context.Context) json.RawMessage {
	raw, ok := ctx.Value(rawMessageKey).(json.RawMessage)
	if !ok {
		return nil
	}

	return raw
}
