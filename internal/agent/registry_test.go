package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoArgs struct {
	Ticker string `json:"ticker" validate:"required,min=1,max=10"`
}

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "echoes the ticker",
		Parameters:  tickerSchema(),
		NewArgs:     func() any { return &echoArgs{} },
		Run: func(ctx context.Context, args any) (string, error) {
			return args.(*echoArgs).Ticker, nil
		},
	}
}

func TestRegistry_RegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	out, err := r.Dispatch(context.Background(), "echo", `{"ticker":"AAPL"}`)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", out)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))
	assert.Error(t, r.Register(echoTool("echo")))
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	_, err := r.Dispatch(context.Background(), "nope", `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
	assert.Contains(t, err.Error(), "echo", "error should list available tools")
}

func TestRegistry_MalformedArguments(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	_, err := r.Dispatch(context.Background(), "echo", `{"ticker": `)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments")
}

func TestRegistry_ValidationRejectsBadArgs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	tests := []struct {
		name string
		args string
	}{
		{"missing ticker", `{}`},
		{"empty ticker", `{"ticker": ""}`},
		{"oversized ticker", `{"ticker": "ABCDEFGHIJKLMNOP"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Dispatch(context.Background(), "echo", tt.args)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_DefinitionsPreserveRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("zeta")))
	require.NoError(t, r.Register(echoTool("alpha")))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "zeta", defs[0].Function.Name)
	assert.Equal(t, "alpha", defs[1].Function.Name)
	assert.Equal(t, "function", defs[0].Type)

	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}
