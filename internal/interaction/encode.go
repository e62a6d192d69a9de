package interaction

import "encoding/json"

type wireResponse struct {
	Type ResponseType `json:"type"`
	Data any          `json:"data,omitempty"`
}

type wireMessageData struct {
	Content string `json:"content"`
	Flags   int    `json:"flags,omitempty"`
}

type wireDeferredData struct {
	Flags int `json:"flags"`
}

// Encode renders resp in the platform's acknowledgment shape. It never fails.
// A nil response encodes as an empty channel message.
func Encode(resp Response) []byte {
	var out wireResponse

	switch r := resp.(type) {
	case Acknowledge:
		out.Type = ResponsePong
	case Message:
		out.Type = ResponseChannelMessage
		out.Data = wireMessageData{Content: r.Content, Flags: flags(r.Ephemeral)}
	case Deferred:
		out.Type = ResponseDeferredChannelMessage
		if r.Ephemeral {
			out.Data = wireDeferredData{Flags: FlagEphemeral}
		}
	default:
		out.Type = ResponseChannelMessage
		out.Data = wireMessageData{}
	}

	// Fixed-shape structs of strings and ints always marshal.
	b, _ := json.Marshal(out)
	return b
}

func flags(ephemeral bool) int {
	if ephemeral {
		return FlagEphemeral
	}
	return 0
}
