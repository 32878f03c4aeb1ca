package exe2dll

import (
	"debug/pe"
	"fmt"
)

type Bitness int

const (
	ThirtyTwoBit Bitness = 32
	SixtyFourBit Bitness = 64
)

func (b Bitness) String() string {
	switch b {
	case ThirtyTwoBit:
		return "x86"
	case SixtyFourBit:
		return "x64"
	}
	return fmt.Sprintf("Bitness(%d)", int(b))
}

// BOOL WINAPI DllMain(HINSTANCE hinstDLL, DWORD fdwReason, LPVOID lpvReserved)
// returning TRUE. stdcall pops the three arguments, the x64 caller cleans up.
var dllMainStubs = map[Bitness][]byte{
	ThirtyTwoBit: {
		0xB8, 0x01, 0x00, 0x00, 0x00, // mov eax, 1
		0xC2, 0x0C, 0x00, //             ret 0Ch
	},
	SixtyFourBit: {
		0xB8, 0x01, 0x00, 0x00, 0x00, // mov eax, 1
		0xC3, //                         ret
	},
}

func BitnessOf(machine uint16) (Bitness, error) {
	switch machine {
	case pe.IMAGE_FILE_MACHINE_I386:
		return ThirtyTwoBit, nil
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return SixtyFourBit, nil
	}
	return 0, fmt.Errorf("%w: machine 0x%04x", ErrUnsupportedMachine, machine)
}

// Stub returns a copy of the DllMain stub for b.
func Stub(b Bitness) []byte {
	return append([]byte(nil), dllMainStubs[b]...)
}
