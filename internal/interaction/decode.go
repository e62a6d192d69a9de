package interaction

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Option types that nest further options instead of carrying a value.
const (
	optionSubCommand      = 1
	optionSubCommandGroup = 2
)

// ErrMalformed is returned for bodies that are not a well-formed interaction.
var ErrMalformed = errors.New("malformed interaction")

type wireInteraction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          *int            `json:"type"`
	Token         string          `json:"token"`
	GuildID       string          `json:"guild_id"`
	ChannelID     string          `json:"channel_id"`
	Member        *wireMember     `json:"member"`
	User          *wireUser       `json:"user"`
	Data          json.RawMessage `json:"data"`
}

type wireMember struct {
	User *wireUser `json:"user"`
}

type wireUser struct {
	ID string `json:"id"`
}

type wireCommandData struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Options []wireOption `json:"options"`
}

type wireOption struct {
	Name    string       `json:"name"`
	Type    int          `json:"type"`
	Value   any          `json:"value"`
	Options []wireOption `json:"options"`
}

// Decode parses body into an Event. It does not authenticate anything;
// callers must verify the signature first.
func Decode(body []byte) (Event, error) {
	var in wireInteraction
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch Type(*in.Type) {
	case TypePing:
		return Handshake{}, nil
	case TypeApplicationCommand:
		return decodeCommand(&in)
	default:
		return Unrecognized{RawType: *in.Type}, nil
	}
}

func decodeCommand(in *wireInteraction) (Event, error) {
	if len(in.Data) == 0 || string(in.Data) == "null" {
		return nil, fmt.Errorf("%w: missing data", ErrMalformed)
	}

	var data wireCommandData
	if err := json.Unmarshal(in.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}
	if data.Name == "" {
		return nil, fmt.Errorf("%w: missing command name", ErrMalformed)
	}

	return CommandInvocation{
		Name:      data.Name,
		Arguments: flattenOptions(data.Options),
		Invoker:   invokerOf(in),
	}, nil
}

// flattenOptions turns the option list into name -> value. Sub-commands and
// groups carry nested options instead of a value and become nested maps.
func flattenOptions(opts []wireOption) map[string]any {
	args := make(map[string]any, len(opts))
	for _, opt := range opts {
		if opt.Name == "" {
			continue
		}
		if opt.Type == optionSubCommand || opt.Type == optionSubCommandGroup || len(opt.Options) > 0 {
			args[opt.Name] = flattenOptions(opt.Options)
			continue
		}
		args[opt.Name] = opt.Value
	}
	return args
}

func invokerOf(in *wireInteraction) Invoker {
	inv := Invoker{
		ChannelID:     in.ChannelID,
		GuildID:       in.GuildID,
		InteractionID: in.ID,
		ApplicationID: in.ApplicationID,
		Token:         in.Token,
	}
	// Guild invocations carry the user under member; DMs carry it directly.
	switch {
	case in.Member != nil && in.Member.User != nil:
		inv.UserID = in.Member.User.ID
	case in.User != nil:
		inv.UserID = in.User.ID
	}
	return inv
}
