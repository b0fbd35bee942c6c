package bootloader

import (
	"strings"
	"testing"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/modules/storage"
)

func TestProposalWithoutRootIsAnError(t *testing.T) {
	ctx := module.NewContext("initial", "installation", "initial", nil)
	prop, err := New(nil).MakeProposal(ctx, module.ProposalRequest{})
	if err != nil {
		t.Fatalf("MakeProposal: %v", err)
	}
	if prop.WarningLevel != module.LevelError {
		t.Fatalf("expected error level, got %+v", prop)
	}
	if res, _ := New(nil).Write(ctx); !res.Failed {
		t.Fatalf("write without location must fail")
	}
}

func TestProposalFollowsStorageAndTogglesSecureBoot(t *testing.T) {
	ctx := module.NewContext("initial", "installation", "initial", nil)
	ctx.Shared.Set(storage.SharedRootDisk, "/dev/sdb")
	ctx.Shared.Set(storage.SharedRootDevice, "/dev/sdb2")
	mod := New(module.Config{"secure_boot": true})
	prop, err := mod.MakeProposal(ctx, module.ProposalRequest{})
	if err != nil {
		t.Fatalf("MakeProposal: %v", err)
	}
	if !strings.Contains(prop.Preformatted, "/dev/sdb") || !strings.Contains(prop.Preformatted, "Secure boot: enabled") {
		t.Fatalf("unexpected proposal %s", prop.Preformatted)
	}
	if _, err := mod.AskUser(ctx, module.AskRequest{ChosenID: linkSecureBoot}); err != nil {
		t.Fatalf("AskUser: %v", err)
	}
	if _, err := mod.MakeProposal(ctx, module.ProposalRequest{}); err != nil {
		t.Fatalf("MakeProposal: %v", err)
	}
	export, _ := mod.Export(ctx)
	if export["secure_boot"] != false || export["location"] != "/dev/sdb" {
		t.Fatalf("unexpected export %+v", export)
	}
}
