// Command stackc is the batch driver of spec.md §6: it wires the
// parser-independent pipeline (internal/check → internal/encode →
// internal/simplify → internal/codegen → internal/michelson for
// compile; internal/michelson → internal/interp → internal/untype for
// decompile) behind a cobra command tree, the way cmd/sentra wires the
// Sentra language's own subcommands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stackc/internal/ast"
	"stackc/internal/check"
	"stackc/internal/codegen"
	"stackc/internal/config"
	"stackc/internal/crypto"
	"stackc/internal/deploy"
	"stackc/internal/diag"
	"stackc/internal/encode"
	"stackc/internal/env"
	"stackc/internal/eval"
	"stackc/internal/interp"
	"stackc/internal/ir"
	"stackc/internal/michelson"
	"stackc/internal/simplify"
	"stackc/internal/types"
	"stackc/internal/untype"
)

var cfg = config.Default()

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		reportAndExit(err)
	}
}

// reportAndExit implements spec.md §7's uniform driver-level formatting
// and §6's exit code contract: 1 for every pipeline error (a diag error),
// 2 for any other error, which is a usage error cobra itself detected
// (unknown flag, wrong argument count) before a command ran.
func reportAndExit(err error) {
	msg := err.Error()
	code := 2
	if de, ok := diag.AsError(err); ok {
		msg = de.Error()
		code = 1
	}
	color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, msg)
	os.Exit(code)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "stackc [file...]",
		Short:        "compile L to M and back",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchDefault(args)
		},
	}

	root.PersistentFlags().StringVarP(&cfg.OutputDir, "o", "o", "", "output directory")
	root.PersistentFlags().StringVar(&cfg.MainName, "main", "main", "entry point name to compile")
	var noPeephole bool
	root.PersistentFlags().BoolVar(&noPeephole, "no-peephole", false, "disable the peephole optimizer")
	root.PersistentFlags().BoolVar(&cfg.TypeOnly, "type-only", false, "typecheck only, emit nothing")
	root.PersistentFlags().BoolVar(&cfg.ParseOnly, "parse-only", false, "stop after reading the untyped AST")
	root.PersistentFlags().BoolVar(&cfg.Compact, "compact", false, "compact JSON/text output")
	root.PersistentFlags().BoolVar(&cfg.JSON, "json", false, "emit structured JSON artifacts")
	root.PersistentFlags().StringVar(&cfg.Amount, "amount", "", "operation amount in mutez")
	root.PersistentFlags().StringVar(&cfg.Fee, "fee", "", "operation fee in mutez")
	root.PersistentFlags().StringVar(&cfg.Source, "source", "", "originating/sending address")
	root.PersistentFlags().StringVar(&cfg.PrivateKey, "private-key", "", "signing key, hex-encoded")
	root.PersistentFlags().Int64Var(&cfg.Counter, "counter", 0, "operation counter")
	root.PersistentFlags().StringVar(&cfg.TezosNode, "tezos-node", "", "node host:port")
	var protocol string
	root.PersistentFlags().StringVar(&protocol, "protocol", string(config.Mainnet), "mainnet|zeronet|alphanet")
	root.PersistentFlags().StringVar(&cfg.Signature, "signature", "", "pre-computed operation signature")
	root.PersistentFlags().BoolVar(&cfg.Verbose, "verbose", false, "verbose logging")

	cobra.OnInitialize(func() {
		flags := root.PersistentFlags()
		cfg.Peephole = !noPeephole
		cfg.Protocol = config.Protocol(protocol)
		loaded, _ := config.LoadFile(cfg, "stackc.yml")
		loaded = config.LoadEnv(loaded)
		if !flags.Changed("o") {
			cfg.OutputDir = loaded.OutputDir
		}
		if !flags.Changed("no-peephole") {
			cfg.Peephole = loaded.Peephole
		}
		if !flags.Changed("protocol") {
			cfg.Protocol = loaded.Protocol
		}
		if !flags.Changed("tezos-node") {
			cfg.TezosNode = loaded.TezosNode
		}
	})

	root.AddCommand(
		compileCmd(), decompileCmd(), runCmd(), initStorageCmd(),
		forgeDeployCmd(), deployCmd(), getStorageCmd(),
		callCmd(), forgeCallCmd(), dataCmd(), injectCmd(),
	)
	return root
}

func dispatchDefault(args []string) error {
	if len(args) == 0 {
		return diag.New(diag.Internal, "", diag.Loc{}, "no input files given")
	}
	for _, f := range args {
		switch strings.ToLower(filepath.Ext(f)) {
		case ".liq":
			if err := compileFile(f); err != nil {
				return err
			}
		case ".tz", ".json":
			if err := decompileFile(f); err != nil {
				return err
			}
		default:
			return diag.New(diag.Internal, "", diag.Loc{}, "%s: unrecognized input extension", f)
		}
	}
	return nil
}

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile FILE...",
		Short: "compile .liq input to M",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range args {
				if err := compileFile(f); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func decompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompile FILE...",
		Short: "decompile M back to an untyped contract",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range args {
				if err := decompileFile(f); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// compileFile runs the full check/encode/simplify/codegen pipeline
// against one `.liq` input, reading it as the JSON-serialized untyped
// ast.Contract internal/untype's counterpart produces, since this
// repository has no surface parser for L's concrete syntax (spec.md §1).
func compileFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return diag.New(diag.External, "", diag.Loc{}, "reading %s: %v", path, err)
	}
	var contract ast.Contract
	if err := json.Unmarshal(data, &contract); err != nil {
		return diag.New(diag.Syntactic, "", diag.Loc{}, "%s: %v", path, err)
	}
	if cfg.ParseOnly {
		return nil
	}

	e := env.New()
	typed, err := check.New(e, check.Strict).CheckContract(&contract)
	if err != nil {
		return err
	}
	if cfg.TypeOnly {
		return nil
	}

	encoded, err := encode.New(e).EncodeContract(typed)
	if err != nil {
		return err
	}
	simplified := simplify.Contract(encoded)

	prog, err := codegen.New(e, cfg.Peephole).Contract(simplified)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	return writeCompiled(base, prog)
}

func writeCompiled(base string, prog michelson.Program) error {
	outBase := base
	if cfg.OutputDir != "" {
		outBase = filepath.Join(cfg.OutputDir, filepath.Base(base))
	}
	if cfg.JSON {
		doc, err := michelson.EmitJSON(prog, cfg.Compact)
		if err != nil {
			return diag.New(diag.Internal, "", diag.Loc{}, "emitting json: %v", err)
		}
		return writeArtifact(outBase+".tz.json", doc)
	}
	return writeArtifact(outBase+".tz", michelson.EmitText(prog))
}

func writeArtifact(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return diag.New(diag.External, "", diag.Loc{}, "writing %s: %v", path, err)
	}
	return nil
}

// decompileFile reads a compiled `.tz`/`.tz.json` artifact, symbolically
// interprets it back to typed IR, untypes it, and writes `file.tz.liq`
// as JSON — the in-scope half of spec.md §4.7's decompile pipeline
// (Decompiler, Untyper); the out-of-scope half (Printer, turning that
// AST into L concrete syntax) is left to the external frontend that
// would also own parsing it back.
func decompileFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return diag.New(diag.External, "", diag.Loc{}, "reading %s: %v", path, err)
	}
	var prog michelson.Program
	if strings.EqualFold(filepath.Ext(path), ".json") {
		prog, err = michelson.DecodeProgram(data)
		if err != nil {
			return err
		}
	} else {
		prog, err = michelson.ParseProgram(string(data))
		if err != nil {
			return err
		}
	}

	instrs, err := michelson.FromConcrete(prog.Code)
	if err != nil {
		return err
	}

	e := env.New()
	contract, err := tryDecompile(e, prog, instrs)
	if err != nil {
		return err
	}

	untyped := untype.Contract(contract)
	doc, err := json.MarshalIndent(untyped, "", "  ")
	if err != nil {
		return diag.New(diag.Internal, "", diag.Loc{}, "marshaling decompiled contract: %v", err)
	}

	base := strings.TrimSuffix(strings.TrimSuffix(path, filepath.Ext(path)), ".tz")
	outBase := base
	if cfg.OutputDir != "" {
		outBase = filepath.Join(cfg.OutputDir, filepath.Base(base))
	}
	return writeArtifact(outBase+".tz.liq", string(doc))
}

// tryDecompile implements spec.md §5's explicit recovery: retry once
// with annotations ignored if the first attempt fails with
// AnnotationConflict.
func tryDecompile(e *env.Env, prog michelson.Program, instrs []michelson.Instr) (*ir.Contract, error) {
	c, err := interp.New(e).Program(prog)
	if err == nil {
		return c, nil
	}
	de, ok := diag.AsError(err)
	if !ok || de.Reason != diag.AnnotationConflict {
		return nil, err
	}
	stripped := stripAnnots(instrs)
	prog.Code = michelson.ToConcrete(stripped)
	return interp.New(e).Program(prog)
}

func stripAnnots(seq []michelson.Instr) []michelson.Instr {
	out := make([]michelson.Instr, len(seq))
	for i, ins := range seq {
		ins.Name = ""
		ins.Field = ""
		ins.Nested = stripAnnots(ins.Nested)
		ins.Then = stripAnnots(ins.Then)
		ins.Else = stripAnnots(ins.Else)
		out[i] = ins
	}
	return out
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run ENTRY PARAM STORAGE --contract FILE",
		Short: "execute a compiled entry against concrete literals",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			contractPath, _ := cmd.Flags().GetString("contract")
			if contractPath == "" {
				return diag.New(diag.Internal, "", diag.Loc{}, "--run requires --contract FILE")
			}
			prog, err := readCompiled(contractPath)
			if err != nil {
				return err
			}
			paramC, err := michelson.ParseConst(args[1])
			if err != nil {
				return err
			}
			param, err := michelson.ParseConstValue(paramC, prog.Parameter)
			if err != nil {
				return err
			}
			storageC, err := michelson.ParseConst(args[2])
			if err != nil {
				return err
			}
			storage, err := michelson.ParseConstValue(storageC, prog.Storage)
			if err != nil {
				return err
			}
			res, err := eval.Run(prog, param, storage)
			if err != nil {
				return err
			}
			fmt.Printf("operations: %d\nstorage: %s\n", res.Operations, michelson.EmitConstText(michelson.ConstConcrete(res.Storage)))
			return nil
		},
	}
	cmd.Flags().String("contract", "", "compiled .tz/.tz.json artifact to run ENTRY against")
	return cmd
}

func readCompiled(path string) (michelson.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return michelson.Program{}, diag.New(diag.External, "", diag.Loc{}, "reading %s: %v", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return michelson.DecodeProgram(data)
	}
	return michelson.ParseProgram(string(data))
}

func initStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-storage FILE VALUE",
		Short: "forge an initial storage literal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := readCompiled(args[0])
			if err != nil {
				return err
			}
			val, err := parseLiteralAgainst(args[1], prog.Storage)
			if err != nil {
				return err
			}
			forged, err := deploy.ForgeData(val)
			if err != nil {
				return err
			}
			return emitForged(args[0], forged)
		},
	}
	return cmd
}

func forgeDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forge-deploy FILE STORAGE",
		Short: "forge an origination operation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := readCompiled(args[0])
			if err != nil {
				return err
			}
			storage, err := parseLiteralAgainst(args[1], prog.Storage)
			if err != nil {
				return err
			}
			forged, err := deploy.ForgeOrigination(prog, storage, cfg.Compact)
			if err != nil {
				return err
			}
			return emitForged(args[0], forged)
		},
	}
}

func forgeCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forge-call ADDR ENTRY PARAM",
		Short: "forge a transaction invoking an entry point",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			paramC, err := michelson.ParseConst(args[2])
			if err != nil {
				return err
			}
			param, err := michelson.ParseConstValue(paramC, inferLiteralType(paramC))
			if err != nil {
				return err
			}
			forged, err := deploy.ForgeCall(args[0], args[1], param)
			if err != nil {
				return err
			}
			return emitForged(args[0], forged)
		},
	}
}

func dataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "data ENTRY PARAM [STORAGE]",
		Short: "render a bare typed literal",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			paramC, err := michelson.ParseConst(args[1])
			if err != nil {
				return err
			}
			param, err := michelson.ParseConstValue(paramC, inferLiteralType(paramC))
			if err != nil {
				return err
			}
			forged, err := deploy.ForgeData(param)
			if err != nil {
				return err
			}
			return emitForged(args[0], forged)
		},
	}
}

func deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy FILE STORAGE",
		Short: "originate a compiled contract against a live node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.TezosNode == "" {
				return diag.New(diag.External, "", diag.Loc{}, "--deploy requires --tezos-node HOST:PORT")
			}
			prog, err := readCompiled(args[0])
			if err != nil {
				return err
			}
			storage, err := parseLiteralAgainst(args[1], prog.Storage)
			if err != nil {
				return err
			}
			forged, err := deploy.ForgeOrigination(prog, storage, cfg.Compact)
			if err != nil {
				return err
			}
			signed, err := signForge(forged)
			if err != nil {
				return err
			}
			hash, err := deploy.NewClient(cfg.TezosNode).Inject(context.Background(), signed)
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call ADDR ENTRY PARAM",
		Short: "invoke an entry point on a live node",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.TezosNode == "" {
				return diag.New(diag.External, "", diag.Loc{}, "--call requires --tezos-node HOST:PORT")
			}
			paramC, err := michelson.ParseConst(args[2])
			if err != nil {
				return err
			}
			param, err := michelson.ParseConstValue(paramC, inferLiteralType(paramC))
			if err != nil {
				return err
			}
			forged, err := deploy.ForgeCall(args[0], args[1], param)
			if err != nil {
				return err
			}
			signed, err := signForge(forged)
			if err != nil {
				return err
			}
			hash, err := deploy.NewClient(cfg.TezosNode).Inject(context.Background(), signed)
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func getStorageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-storage ADDR",
		Short: "fetch a contract's current storage from a live node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.TezosNode == "" {
				return diag.New(diag.External, "", diag.Loc{}, "--get-storage requires --tezos-node HOST:PORT")
			}
			storage, err := deploy.NewClient(cfg.TezosNode).GetStorage(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(storage)
			return nil
		},
	}
}

func injectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inject FILE",
		Short: "submit a pre-signed forged operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.TezosNode == "" {
				return diag.New(diag.External, "", diag.Loc{}, "--inject requires --tezos-node HOST:PORT")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return diag.New(diag.External, "", diag.Loc{}, "reading %s: %v", args[0], err)
			}
			hash, err := deploy.NewClient(cfg.TezosNode).Inject(context.Background(), string(data))
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func emitForged(base string, f deploy.Forged) error {
	outBase := strings.TrimSuffix(base, filepath.Ext(base))
	if cfg.OutputDir != "" {
		outBase = filepath.Join(cfg.OutputDir, filepath.Base(outBase))
	}
	if cfg.JSON {
		return writeArtifact(outBase+".forged.json", f.JSON)
	}
	return writeArtifact(outBase+".forged.tz", f.Text)
}

func parseLiteralAgainst(lit string, ty *types.Type) (types.Const, error) {
	c, err := michelson.ParseConst(lit)
	if err != nil {
		return types.Const{}, err
	}
	return michelson.ParseConstValue(c, ty)
}

// inferLiteralType covers the commands that have no compiled artifact
// to read an expected type from (forge-call/call/data take a bare
// literal with no paired type signature in spec.md §6): only the
// simplest ground kinds can round-trip this way, everything else needs
// --contract-style type context and is rejected.
func inferLiteralType(c michelson.Concrete) *types.Type {
	switch {
	case c.Prim == "True" || c.Prim == "False":
		return types.Bool
	case c.Prim == "Unit":
		return types.Unit
	case strings.HasPrefix(c.Prim, "0x"):
		return types.Bytes
	case len(c.Prim) > 0 && (c.Prim[0] == '-' || (c.Prim[0] >= '0' && c.Prim[0] <= '9')):
		return types.Int
	default:
		return types.String
	}
}

func signForge(f deploy.Forged) (string, error) {
	if cfg.Signature != "" {
		return f.Text + cfg.Signature, nil
	}
	if cfg.PrivateKey == "" {
		return "", diag.New(diag.External, "", diag.Loc{}, "signing requires --private-key or --signature")
	}
	kp, err := crypto.ParsePrivateKey(cfg.PrivateKey, crypto.Ed25519)
	if err != nil {
		return "", err
	}
	sig, err := kp.Sign([]byte(f.Text))
	if err != nil {
		return "", err
	}
	return f.Text + fmt.Sprintf("%x", sig), nil
}
