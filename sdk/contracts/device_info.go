package contracts

// VirtualPortConfig names the virtual MIDI source published by platform transports.
type VirtualPortConfig struct {
	ClientName string // Name of the MIDI client registered with the OS.
	SourceName string // Name of the source endpoint receivers connect to.
	DeviceID   int    // Output device index, for platforms without virtual sources.
}

// PortInfo describes a MIDI output port a transport can open.
type PortInfo struct {
	Index int    // Position in the driver's port list.
	Name  string // Port name as reported by the driver.
}
