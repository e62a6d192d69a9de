package interaction

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Event
		wantErr bool
	}{
		{
			name: "ping",
			body: `{"type":1}`,
			want: Handshake{},
		},
		{
			name: "ping ignores extra fields",
			body: `{"type":1,"id":"1","token":"t","data":{"name":"ignored"}}`,
			want: Handshake{},
		},
		{
			name: "command without options",
			body: `{"type":2,"data":{"name":"hello"}}`,
			want: CommandInvocation{Name: "hello", Arguments: map[string]any{}},
		},
		{
			name: "guild command with member and options",
			body: `{
				"type": 2,
				"id": "int-1",
				"application_id": "app-1",
				"token": "tok",
				"guild_id": "g-1",
				"channel_id": "c-1",
				"member": {"user": {"id": "u-1"}},
				"data": {
					"name": "note",
					"options": [
						{"name": "text", "type": 3, "value": "buy milk"},
						{"name": "count", "type": 4, "value": 3},
						{"name": "loud", "type": 5, "value": true}
					]
				}
			}`,
			want: CommandInvocation{
				Name: "note",
				Arguments: map[string]any{
					"text":  "buy milk",
					"count": float64(3),
					"loud":  true,
				},
				Invoker: Invoker{
					UserID:        "u-1",
					ChannelID:     "c-1",
					GuildID:       "g-1",
					InteractionID: "int-1",
					ApplicationID: "app-1",
					Token:         "tok",
				},
			},
		},
		{
			name: "dm command uses top-level user",
			body: `{"type":2,"channel_id":"dm","user":{"id":"u-2"},"data":{"name":"hello"}}`,
			want: CommandInvocation{
				Name:      "hello",
				Arguments: map[string]any{},
				Invoker:   Invoker{UserID: "u-2", ChannelID: "dm"},
			},
		},
		{
			name: "sub-commands become nested maps",
			body: `{"type":2,"data":{"name":"config","options":[
				{"name":"set","type":1,"options":[{"name":"key","type":3,"value":"color"}]},
				{"name":"empty","type":1}
			]}}`,
			want: CommandInvocation{
				Name: "config",
				Arguments: map[string]any{
					"set":   map[string]any{"key": "color"},
					"empty": map[string]any{},
				},
			},
		},
		{
			name: "unknown discriminant",
			body: `{"type":3}`,
			want: Unrecognized{RawType: 3},
		},
		{
			name: "negative discriminant",
			body: `{"type":-7}`,
			want: Unrecognized{RawType: -7},
		},
		{name: "invalid json", body: `{"type":`, wantErr: true},
		{name: "not an object", body: `[1]`, wantErr: true},
		{name: "null", body: `null`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
		{name: "missing type", body: `{"data":{}}`, wantErr: true},
		{name: "string type", body: `{"type":"1"}`, wantErr: true},
		{name: "fractional type", body: `{"type":1.5}`, wantErr: true},
		{name: "command without data", body: `{"type":2}`, wantErr: true},
		{name: "command with null data", body: `{"type":2,"data":null}`, wantErr: true},
		{name: "command without name", body: `{"type":2,"data":{"options":[]}}`, wantErr: true},
		{name: "command with empty name", body: `{"type":2,"data":{"name":""}}`, wantErr: true},
		{name: "command data not an object", body: `{"type":2,"data":"hello"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformed), "error should wrap ErrMalformed: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_EveryDiscriminantMapsToOneVariant(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("decode is total over discriminants", prop.ForAll(
		func(discriminant int) bool {
			body := fmt.Sprintf(`{"type":%d,"data":{"name":"x"}}`, discriminant)
			ev, err := Decode([]byte(body))
			if err != nil {
				return false
			}
			switch e := ev.(type) {
			case Handshake:
				return discriminant == int(TypePing)
			case CommandInvocation:
				return discriminant == int(TypeApplicationCommand) && e.Name == "x"
			case Unrecognized:
				return discriminant != int(TypePing) && discriminant != int(TypeApplicationCommand) &&
					e.RawType == discriminant
			default:
				return false
			}
		},
		gen.IntRange(-1000, 1000),
	))

	properties.TestingRun(t)
}
