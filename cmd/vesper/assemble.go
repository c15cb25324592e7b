package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"vesper/vm"
)

// mnemonics maps the textual assembler's instruction names onto Opcode
// values. Only the subset of the catalogue a toplevel function body can
// use without a surrounding class hierarchy is recognized here —
// method-invocation and field-access opcodes need a loaded class table,
// which is out of scope for this embedder's "run one toplevel function"
// entry point.
var mnemonics = map[string]vm.Opcode{
	"LoadLocal":            vm.OpLoadLocal,
	"LoadLocalWide":        vm.OpLoadLocalWide,
	"LoadNull":              vm.OpLoadNull,
	"LoadTrue":              vm.OpLoadTrue,
	"LoadFalse":             vm.OpLoadFalse,
	"LoadSmi0":              vm.OpLoadSmi0,
	"LoadSmi1":              vm.OpLoadSmi1,
	"StoreLocal":            vm.OpStoreLocal,
	"Pop":                   vm.OpPop,
	"Dup":                   vm.OpDup,
	"InvokeAdd":             vm.OpInvokeAdd,
	"InvokeSub":             vm.OpInvokeSub,
	"InvokeMul":             vm.OpInvokeMul,
	"InvokeMod":             vm.OpInvokeMod,
	"InvokeEq":              vm.OpInvokeEq,
	"InvokeLt":              vm.OpInvokeLt,
	"InvokeLe":              vm.OpInvokeLe,
	"InvokeGt":              vm.OpInvokeGt,
	"InvokeGe":              vm.OpInvokeGe,
	"InvokeBitAnd":          vm.OpInvokeBitAnd,
	"InvokeBitOr":           vm.OpInvokeBitOr,
	"InvokeBitXor":          vm.OpInvokeBitXor,
	"InvokeBitNot":          vm.OpInvokeBitNot,
	"InvokeBitShl":          vm.OpInvokeBitShl,
	"InvokeBitShr":          vm.OpInvokeBitShr,
	"Branch":                vm.OpBranch,
	"BranchWide":            vm.OpBranchWide,
	"BranchIfTrue":          vm.OpBranchIfTrue,
	"BranchIfFalse":         vm.OpBranchIfFalse,
	"PopAndBranchIfTrue":    vm.OpPopAndBranchIfTrue,
	"PopAndBranchIfFalse":   vm.OpPopAndBranchIfFalse,
	"BranchBack":            vm.OpBranchBack,
	"BranchBackIfTrue":      vm.OpBranchBackIfTrue,
	"BranchBackIfFalse":     vm.OpBranchBackIfFalse,
	"Return":                vm.OpReturn,
	"ReturnNull":            vm.OpReturnNull,
	"Throw":                 vm.OpThrow,
	"SubroutineCall":        vm.OpSubroutineCall,
	"SubroutineReturn":      vm.OpSubroutineReturn,
	"AllocateBoxed":         vm.OpAllocateBoxed,
	"AllocateArray":         vm.OpAllocateArray,
	"Negate":                vm.OpNegate,
	"Identical":             vm.OpIdentical,
	"IdenticalNonNumeric":   vm.OpIdenticalNonNumeric,
	"StackOverflowCheck":    vm.OpStackOverflowCheck,
	"ProcessYield":          vm.OpProcessYield,
	"FrameSize":             vm.OpFrameSize,
	"MethodEnd":             vm.OpMethodEnd,
}

type asmInstr struct {
	op      vm.Opcode
	operand string // raw token: decimal literal or label name
}

// assembled is the product of assembling one textual program: a single
// toplevel Function's bytecode plus the frame size the "frame" directive
// declared.
type assembled struct {
	frameSize int
	code      []byte
}

// assembleProgram parses a tiny textual bytecode format: one
// instruction per line, "frame N" to declare the function's
// local-slot count, "name:" lines to mark
// branch targets, "#"/";" line comments. It is a two-pass assembler —
// the first pass measures each instruction's encoded length (from
// vm.Opcode.Info, the same metadata the interpreter's own tooling
// consults) to resolve label offsets, the second emits bytes.
func assembleProgram(src string) (*assembled, error) {
	type line struct {
		label string // non-empty if this line only defines a label
		instr *asmInstr
	}

	var lines []line
	frameSize := 0
	frameSeen := false

	sc := bufio.NewScanner(strings.NewReader(src))
	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		if strings.HasSuffix(raw, ":") && !strings.Contains(raw, " ") {
			lines = append(lines, line{label: strings.TrimSuffix(raw, ":")})
			continue
		}
		fields := strings.Fields(raw)
		if fields[0] == "frame" {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("bad frame directive %q: %w", raw, err)
			}
			frameSize = n
			frameSeen = true
			continue
		}
		op, ok := mnemonics[fields[0]]
		if !ok {
			return nil, fmt.Errorf("unknown mnemonic %q", fields[0])
		}
		operand := ""
		if len(fields) > 1 {
			operand = fields[1]
		}
		lines = append(lines, line{instr: &asmInstr{op: op, operand: operand}})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !frameSeen {
		return nil, fmt.Errorf("missing \"frame N\" directive")
	}

	// Pass 1: lay out offsets, recording each label's absolute position.
	labels := make(map[string]int)
	offset := 0
	for _, ln := range lines {
		if ln.label != "" {
			labels[ln.label] = offset
			continue
		}
		offset += ln.instr.op.Info().Length
	}

	// Pass 2: encode.
	code := make([]byte, 0, offset)
	for _, ln := range lines {
		if ln.label != "" {
			continue
		}
		instr := ln.instr
		info := instr.op.Info()
		code = append(code, byte(instr.op))
		switch info.Operand {
		case vm.OperandNone:
			// nothing to encode
		case vm.OperandByte:
			n, err := operandValue(instr, labels)
			if err != nil {
				return nil, err
			}
			code = append(code, byte(n))
		case vm.OperandWide:
			n, err := operandValue(instr, labels)
			if err != nil {
				return nil, err
			}
			code = appendWide(code, int32(n))
		default:
			return nil, fmt.Errorf("mnemonic %s: unsupported operand format in this assembler", instr.op.String())
		}
	}

	return &assembled{frameSize: frameSize, code: code}, nil
}

// operandValue resolves an instruction's operand token: a label name for
// branching opcodes (including SubroutineCall, whose operand is the
// subroutine's entry label), otherwise a decimal literal.
func operandValue(instr *asmInstr, labels map[string]int) (int, error) {
	if instr.op.Info().Branches || instr.op == vm.OpSubroutineCall {
		if off, ok := labels[instr.operand]; ok {
			return off, nil
		}
	}
	n, err := strconv.Atoi(instr.operand)
	if err != nil {
		return 0, fmt.Errorf("operand %q for %s: %w", instr.operand, instr.op.String(), err)
	}
	return n, nil
}

func appendWide(dst []byte, v int32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
