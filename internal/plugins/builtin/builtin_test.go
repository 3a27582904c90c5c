// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermodbot/hermod/internal/admission"
	"github.com/hermodbot/hermod/internal/classify"
	"github.com/hermodbot/hermod/internal/hooks"
	"github.com/hermodbot/hermod/internal/registry"
)

func newEngine(t *testing.T) (Deps, *registry.Registry) {
	t.Helper()
	reg := registry.New(".", hooks.NewBus())
	deps := Deps{
		Registry:  reg,
		Admission: admission.New(admission.Config{}),
		StartedAt: time.Now(),
	}
	require.NoError(t, reg.LoadSource(NewSource(deps)))
	return deps, reg
}

// fakeInvocation builds an invocation whose replies are captured.
func fakeInvocation(argsText string) (*registry.Invocation, *[]string) {
	var replies []string
	ic := &classify.Context{
		Sender:    "alice@s.whatsapp.net",
		Chat:      "alice@s.whatsapp.net",
		IsPrivate: true,
		Kind:      classify.KindText,
		Caps: &classify.Capabilities{
			Reply: func(_ context.Context, text string) (string, error) {
				replies = append(replies, text)
				return "msg-id", nil
			},
		},
	}
	return &registry.Invocation{Context: ic, ArgsText: argsText}, &replies
}

func TestBuiltins_Register(t *testing.T) {
	_, reg := newEngine(t)

	for _, name := range []string{"ping", "echo", "help", "stats"} {
		_, ok := reg.Get(name)
		assert.True(t, ok, "expected %s registered", name)
	}

	// echo is reachable via its alias
	def, ok := reg.Get("say")
	require.True(t, ok)
	assert.Equal(t, "echo", def.Name)
}

func TestPing_RepliesWithUptime(t *testing.T) {
	_, reg := newEngine(t)
	def, ok := reg.Get("ping")
	require.True(t, ok)

	inv, replies := fakeInvocation("")
	require.NoError(t, def.Handler(context.Background(), inv))
	require.Len(t, *replies, 1)
	assert.Contains(t, (*replies)[0], "pong")
}

func TestEcho_RepeatsArgs(t *testing.T) {
	_, reg := newEngine(t)
	def, ok := reg.Get("echo")
	require.True(t, ok)

	inv, replies := fakeInvocation("hello world")
	require.NoError(t, def.Handler(context.Background(), inv))
	require.Len(t, *replies, 1)
	assert.Equal(t, "hello world", (*replies)[0])

	inv, replies = fakeInvocation("")
	require.NoError(t, def.Handler(context.Background(), inv))
	require.Len(t, *replies, 1)
	assert.Equal(t, "Nothing to echo.", (*replies)[0])
}

func TestHelp_IndexListsCategories(t *testing.T) {
	_, reg := newEngine(t)
	def, ok := reg.Get("help")
	require.True(t, ok)

	inv, replies := fakeInvocation("")
	require.NoError(t, def.Handler(context.Background(), inv))
	require.Len(t, *replies, 1)
	out := (*replies)[0]
	assert.Contains(t, out, "info")
	assert.Contains(t, out, ".ping")
	assert.Contains(t, out, ".echo")
}

func TestHelp_DetailShowsAliases(t *testing.T) {
	_, reg := newEngine(t)
	def, ok := reg.Get("help")
	require.True(t, ok)

	inv, replies := fakeInvocation("echo")
	require.NoError(t, def.Handler(context.Background(), inv))
	require.Len(t, *replies, 1)
	assert.Contains(t, (*replies)[0], ".echo")
	assert.Contains(t, (*replies)[0], "say")
}

func TestHelp_UnknownCommand(t *testing.T) {
	_, reg := newEngine(t)
	def, ok := reg.Get("help")
	require.True(t, ok)

	inv, replies := fakeInvocation("nosuchcommand")
	require.NoError(t, def.Handler(context.Background(), inv))
	require.Len(t, *replies, 1)
	assert.Contains(t, (*replies)[0], "No command matching")
}

func TestStats_ReportsUsageAndQuota(t *testing.T) {
	deps, reg := newEngine(t)

	ping, ok := reg.Get("ping")
	require.True(t, ok)
	// An admission pass bumps the daily quota; RecordUsage bumps the stats.
	ic := &classify.Context{Sender: "alice", Chat: "chat-1", IsPrivate: true}
	require.True(t, deps.Admission.CanExecute(context.Background(), ping, ic).Allowed)
	deps.Admission.RecordUsage(ping, "alice", "chat-1", 20*time.Millisecond)

	def, ok := reg.Get("stats")
	require.True(t, ok)
	assert.True(t, def.Policy.OwnerOnly)

	inv, replies := fakeInvocation("")
	require.NoError(t, def.Handler(context.Background(), inv))
	require.Len(t, *replies, 1)
	assert.Contains(t, (*replies)[0], "ping: 1 calls")
	assert.Contains(t, (*replies)[0], "1 messages")
}

func TestGreeter_HandlesPlainGreeting(t *testing.T) {
	_, reg := newEngine(t)

	entries := reg.MessageHandlers()
	require.NotEmpty(t, entries)

	inv, replies := fakeInvocation("")
	inv.Context.Body = "hello"

	var handled bool
	for _, entry := range entries {
		if entry.Filter != nil && !entry.Filter(inv.Context) {
			continue
		}
		var err error
		handled, err = entry.Fn(context.Background(), inv)
		require.NoError(t, err)
		if handled {
			break
		}
	}
	assert.True(t, handled)
	require.Len(t, *replies, 1)
	assert.Contains(t, (*replies)[0], "Hello!")
}

func TestGreeter_IgnoresNonGreetings(t *testing.T) {
	_, reg := newEngine(t)

	inv, replies := fakeInvocation("")
	inv.Context.Body = "what is the weather"

	for _, entry := range reg.MessageHandlers() {
		if entry.Filter != nil && !entry.Filter(inv.Context) {
			continue
		}
		handled, err := entry.Fn(context.Background(), inv)
		require.NoError(t, err)
		assert.False(t, handled)
	}
	assert.Empty(t, *replies)
}
