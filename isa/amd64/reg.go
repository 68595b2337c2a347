package amd64

// regNames32 gives the 32-bit register name for each architectural number, per
// the GLOSSARY's 0=RAX, 1=RCX, 2=RDX, 3=RBX, 4=RSP, 5=RBP, 6=RSI, 7=RDI,
// 8=R8, ... 15=R15 numbering. Only regName reads these tables, and nothing in
// the pipeline calls regName (MachineInst.String prints registers as r<n>).
var regNames32 = [16]string{
	"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
	"r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d",
}

var regNames64 = [16]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

var regNames8 = [16]string{
	"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil",
	"r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b",
}

func regName(num uint8, width int) string {
	switch width {
	case 8:
		return regNames8[num]
	case 64:
		return regNames64[num]
	default:
		return regNames32[num]
	}
}

// needsREXExtension reports whether referencing this register number requires
// one of REX.B/R/X to be set (spec §4.H: "bit 0 (B) for extended r/m field").
func needsREXExtension(num uint8) bool { return num >= 8 }

// needsRexForByteAccess reports whether an 8-bit operand naming this register
// must carry a REX prefix purely to select the low-byte encoding rather than
// the legacy AH/CH/DH/BH range (spec §4.H SETcc note).
func needsRexForByteAccess(num uint8) bool { return num >= 4 }
