package module

// Base provides common plumbing for modules: identity plus no-op lifecycle
// methods, so simple modules only override what they need.
type Base struct {
	info Info
}

// NewBase seeds the helper with module info.
func NewBase(info Info) Base {
	return Base{info: info}
}

// Info implements Module.Info.
func (b *Base) Info() Info {
	return b.info
}

// Mount implements Module.Mount as a no-op.
func (b *Base) Mount(Host) error {
	return nil
}

// Unmount implements Module.Unmount as a no-op.
func (b *Base) Unmount(Host) error {
	return nil
}
