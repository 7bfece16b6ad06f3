package main

import (
	"fmt"

	"github.com/jamesainslie/binmin/pkg/binmin/manifest"
	"github.com/jamesainslie/binmin/pkg/binmin/restore"
	"github.com/jamesainslie/binmin/pkg/binmin/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	verifyLinkKind   string
	verifyStrict     bool
	verifyShadowDir  string
	verifyKeepShadow bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <manifest> <dir>",
	Short: "Check that a manifest rebuilds a tree exactly",
	Long: `Verify rebuilds dir from the manifest into a private shadow directory and
compares the two trees. dir is never modified. The exit status is 3 when
the trees differ in a way the current strictness does not accept.`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyLinkKind, "link-kind", "", "shadow link kind: symlink or hardlink (default from config)")
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "reject directory-only differences")
	verifyCmd.Flags().StringVar(&verifyShadowDir, "shadow-dir", "", "parent directory for the shadow tree")
	verifyCmd.Flags().BoolVar(&verifyKeepShadow, "keep-shadow", false, "keep the shadow tree")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	root, err := resolveDir(args[1])
	if err != nil {
		return err
	}

	kindName := verifyLinkKind
	if kindName == "" {
		kindName = viper.GetString("link_kind")
	}
	strict := viper.GetBool("strict")
	if cmd.Flags().Changed("strict") {
		strict = verifyStrict
	}

	ctx, cancel := signalContext()
	defer cancel()

	v, err := workflow.Verify(ctx, m, root, workflow.VerifyOptions{
		LinkKind:   restore.LinkKind(kindName),
		Strict:     strict,
		ShadowDir:  verifyShadowDir,
		KeepShadow: verifyKeepShadow,
	})
	if err != nil {
		printMismatch(err)
		return err
	}

	if v.Patch.Empty() {
		printInfo("OK: %s matches the manifest", root)
	} else {
		printInfo("OK: %s matches the manifest up to directories:", root)
		for _, op := range v.Patch.Strings() {
			printInfo("  %s", op)
		}
	}
	if v.ShadowPath != "" {
		printInfo("Shadow tree kept at %s", v.ShadowPath)
	}
	return nil
}
