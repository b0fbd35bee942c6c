package software

import (
	"strings"
	"testing"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/modules/storage"
)

// Default patterns plus gnome need 5500 MiB.
func TestProposalChecksRootPartition(t *testing.T) {
	cases := []struct {
		name   string
		rootGB any
		want   module.WarningLevel
	}{
		{name: "unknown root", rootGB: nil, want: module.LevelNone},
		{name: "plenty of space", rootGB: 10, want: module.LevelNone},
		{name: "mostly full", rootGB: 6, want: module.LevelWarning},
		{name: "too small", rootGB: 5, want: module.LevelBlocker},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := module.NewContext("initial", "installation", "initial", nil)
			if tc.rootGB != nil {
				ctx.Shared.Set(storage.SharedRootSizeGB, tc.rootGB)
			}
			prop, err := New(module.Config{"desktop": "gnome"}).MakeProposal(ctx, module.ProposalRequest{})
			if err != nil {
				t.Fatalf("MakeProposal: %v", err)
			}
			if prop.WarningLevel != tc.want {
				t.Fatalf("expected %s, got %+v", tc.want, prop)
			}
			if err := prop.Validate(); err != nil {
				t.Fatalf("invalid proposal: %v", err)
			}
		})
	}
}

func TestDesktopLinkCycles(t *testing.T) {
	ctx := module.NewContext("initial", "installation", "initial", nil)
	mod := New(module.Config{"desktops": []any{"gnome", "none"}})
	if _, err := mod.MakeProposal(ctx, module.ProposalRequest{}); err != nil {
		t.Fatalf("MakeProposal: %v", err)
	}
	if _, err := mod.AskUser(ctx, module.AskRequest{ChosenID: linkDesktop}); err != nil {
		t.Fatalf("AskUser: %v", err)
	}
	prop, err := mod.MakeProposal(ctx, module.ProposalRequest{})
	if err != nil {
		t.Fatalf("MakeProposal: %v", err)
	}
	if !strings.Contains(prop.Preformatted, ">none</a>") || strings.Contains(prop.Preformatted, "desktop_gnome") {
		t.Fatalf("desktop should have switched to none: %s", prop.Preformatted)
	}
	export, _ := mod.Export(ctx)
	if export["desktop"] != "none" {
		t.Fatalf("unexpected export %+v", export)
	}
}
