package security

import (
	"testing"

	"github.com/kingrea/overview/internal/module"
)

func TestDisablingFirewallWarns(t *testing.T) {
	ctx := module.NewContext("initial", "installation", "initial", nil)
	mod := New(module.Config{"ssh": true})
	prop, err := mod.MakeProposal(ctx, module.ProposalRequest{})
	if err != nil {
		t.Fatalf("MakeProposal: %v", err)
	}
	if prop.WarningLevel != module.LevelNone {
		t.Fatalf("firewall on by default, got %+v", prop)
	}
	if _, err := mod.AskUser(ctx, module.AskRequest{ChosenID: linkFirewall}); err != nil {
		t.Fatalf("AskUser: %v", err)
	}
	prop, err = mod.MakeProposal(ctx, module.ProposalRequest{})
	if err != nil {
		t.Fatalf("MakeProposal: %v", err)
	}
	if prop.WarningLevel != module.LevelWarning || prop.Warning != "The firewall is disabled and the SSH port is open." {
		t.Fatalf("unexpected proposal %+v", prop)
	}
	if prop.WarningLevel.Qualifying() {
		t.Fatalf("a disabled firewall must not force a tab switch")
	}

	prop, err = mod.MakeProposal(ctx, module.ProposalRequest{ForceReset: true})
	if err != nil {
		t.Fatalf("MakeProposal: %v", err)
	}
	if prop.WarningLevel != module.LevelNone {
		t.Fatalf("reset should re-enable the firewall, got %+v", prop)
	}
}
