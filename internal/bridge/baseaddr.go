package bridge

import "github.com/Crest/swdcom/internal/transport"

// BaseAddrRegister is the general-purpose register the firmware is
// required to hold the control block's base address in, per spec.md §3.
const BaseAddrRegister = 11

// ResolveBaseAddress obtains the control block's base address from the
// target when the user did not supply one on the command line: halt,
// read the register, resume. Any failure here is fatal (spec.md §7).
func ResolveBaseAddress(mem transport.Memory) (uint32, error) {
	if err := mem.Halt(); err != nil {
		return 0, wrap("halt target", err)
	}
	addr, err := mem.ReadRegister(BaseAddrRegister)
	if err != nil {
		return 0, wrap("read base address register", err)
	}
	if err := mem.Resume(); err != nil {
		return 0, wrap("resume target", err)
	}
	return addr, nil
}
