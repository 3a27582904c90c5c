// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermodbot/hermod/internal/classify"
	"github.com/hermodbot/hermod/internal/hooks"
)

func TestFindCommand_Boundary(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(commandDef("ping"), "src-1"))
	require.NoError(t, r.Register(commandDef("pingpong"), "src-1"))

	tests := []struct {
		name string
		text string
		want string // "" means no match
	}{
		{"exact", ".ping", "ping"},
		{"with args", ".ping now", "ping"},
		{"longer command matches its own def", ".pingpong", "pingpong"},
		{"no prefix", "ping", ""},
		{"prefix only", ".", ""},
		{"prefix glued to other text", ".pingx", ""},
		{"case insensitive", ".PiNg", "ping"},
		{"leading whitespace does not match", " .ping", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := r.FindCommand(tt.text, classify.KindText)
			if tt.want == "" {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.want, m.Def.Name)
		})
	}
}

func TestFindCommand_AliasReported(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(commandDef("echo", "say", "repeat"), "src-1"))

	m := r.FindCommand(".say hello", classify.KindText)
	require.NotNil(t, m)
	assert.Equal(t, "echo", m.Def.Name)
	assert.Equal(t, "say", m.MatchedAlias)
	assert.Equal(t, "hello", m.ArgsText)
}

func TestFindCommand_ArgsAndFlags(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(commandDef("deploy"), "src-1"))

	t.Run("plain args keep the raw remainder", func(t *testing.T) {
		m := r.FindCommand(".deploy api  fast", classify.KindText)
		require.NotNil(t, m)
		assert.Equal(t, "api  fast", m.ArgsText)
		assert.Equal(t, []string{"api", "fast"}, m.Args)
		assert.Nil(t, m.Flags)
	})

	t.Run("flags are pulled out of the remainder", func(t *testing.T) {
		m := r.FindCommand(".deploy api --force --env=prod", classify.KindText)
		require.NotNil(t, m)
		assert.Equal(t, "api", m.ArgsText)
		assert.Equal(t, []string{"api"}, m.Args)
		assert.Equal(t, map[string]string{"force": "true", "env": "prod"}, m.Flags)
	})

	t.Run("double dash alone is an arg", func(t *testing.T) {
		m := r.FindCommand(".deploy -- api", classify.KindText)
		require.NotNil(t, m)
		assert.Equal(t, []string{"--", "api"}, m.Args)
	})

	t.Run("no args", func(t *testing.T) {
		m := r.FindCommand(".deploy", classify.KindText)
		require.NotNil(t, m)
		assert.Empty(t, m.ArgsText)
		assert.Nil(t, m.Args)
	})
}

func TestFindCommand_RegistrationOrderWins(t *testing.T) {
	r := newRegistry()

	first := commandDef("status")
	require.NoError(t, r.Register(first, "src-1"))

	// "st" is a prefix-level overlap; registration order decides, not
	// specificity.
	second := commandDef("st", "status-short")
	require.NoError(t, r.Register(second, "src-1"))

	m := r.FindCommand(".st", classify.KindText)
	require.NotNil(t, m)
	assert.Equal(t, "st", m.Def.Name)

	m = r.FindCommand(".status", classify.KindText)
	require.NotNil(t, m)
	assert.Equal(t, "status", m.Def.Name)
}

func TestFindCommand_KindGating(t *testing.T) {
	r := newRegistry()

	sticker := commandDef("tag")
	sticker.MessageKinds = []classify.Kind{classify.KindImage, classify.KindVideo}
	require.NoError(t, r.Register(sticker, "src-1"))

	anyKind := commandDef("info")
	anyKind.MessageKinds = []classify.Kind{classify.KindAny}
	require.NoError(t, r.Register(anyKind, "src-1"))

	assert.Nil(t, r.FindCommand(".tag", classify.KindText))
	assert.NotNil(t, r.FindCommand(".tag", classify.KindImage))
	assert.NotNil(t, r.FindCommand(".info", classify.KindSticker))
}

func TestFindCommand_SkipsDisabled(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(commandDef("ping"), "src-1"))
	require.NoError(t, r.Disable("ping", "broken"))

	assert.Nil(t, r.FindCommand(".ping", classify.KindText))
}

func TestBuildPattern_EscapesMetaCharacters(t *testing.T) {
	r := New("!", hooks.NewBus())
	require.NoError(t, r.Register(commandDef("r.i.p"), "src-1"))

	assert.NotNil(t, r.FindCommand("!r.i.p", classify.KindText))
	assert.Nil(t, r.FindCommand("!rxixp", classify.KindText))
}

func TestSearch(t *testing.T) {
	r := newRegistry()

	ping := commandDef("ping")
	ping.Description = "liveness check"
	echo := commandDef("echo", "say")
	echo.Category = "utility"
	pinger := commandDef("pinger-admin")
	pinger.Tags = []string{"admin"}
	for _, def := range []*Definition{pinger, ping, echo} {
		require.NoError(t, r.Register(def, "src-1"))
	}

	t.Run("exact name ranks first", func(t *testing.T) {
		got := r.Search("ping")
		require.Len(t, got, 2)
		assert.Equal(t, "ping", got[0].Name)
		assert.Equal(t, "pinger-admin", got[1].Name)
	})

	t.Run("alias counts as exact", func(t *testing.T) {
		got := r.Search("SAY")
		require.Len(t, got, 1)
		assert.Equal(t, "echo", got[0].Name)
	})

	t.Run("description and tags are searched", func(t *testing.T) {
		got := r.Search("liveness")
		require.Len(t, got, 1)
		assert.Equal(t, "ping", got[0].Name)

		got = r.Search("admin")
		require.Len(t, got, 1)
		assert.Equal(t, "pinger-admin", got[0].Name)
	})

	t.Run("blank query", func(t *testing.T) {
		assert.Nil(t, r.Search("   "))
	})
}
