package resource

// TCPIPInstr builds a TCPIP INSTR name for host on the default board.
func TCPIPInstr(host, lanDevice string) Name {
	if lanDevice == "" {
		lanDevice = DefaultLANDevice
	}
	return Name{Interface: TCPIP, Class: Instr, Host: host,
		LANDevice: lanDevice, SecondaryAddress: -1}
}

// TCPIPSocket builds a TCPIP SOCKET name for host:port.
func TCPIPSocket(host string, port int) Name {
	return Name{Interface: TCPIP, Class: Socket, Host: host, Port: port,
		SecondaryAddress: -1}
}

// ASRLInstr builds a serial name for the given port number.
func ASRLInstr(board int) Name {
	return Name{Interface: ASRL, Class: Instr, Board: board,
		SecondaryAddress: -1}
}

// GPIBInstr builds a GPIB name for the given primary address.
func GPIBInstr(board, address int) Name {
	return Name{Interface: GPIB, Class: Instr, Board: board,
		PrimaryAddress: address, SecondaryAddress: -1}
}

// USBInstr builds a USBTMC INSTR name.
func USBInstr(manufacturerID, modelCode, serialNumber string) Name {
	return Name{Interface: USB, Class: Instr, ManufacturerID: manufacturerID,
		ModelCode: modelCode, SerialNumber: serialNumber, SecondaryAddress: -1}
}

// Protocols declares, per interface type, the connection defaults a
// driver expects when only partial information is supplied. A driver
// that always listens on port 50000 in SOCKET mode declares
//
//	resource.Protocols{resource.TCPIP: {Class: resource.Socket, Port: 50000}}
//
// and callers only need to provide the host.
type Protocols map[InterfaceType]Name

// Fill completes n with the declared defaults for its interface type.
// Fields already set on n win.
func (p Protocols) Fill(n Name) Name {
	def, ok := p[n.Interface]
	if !ok {
		return n
	}
	if n.Class == "" {
		n.Class = def.Class
	}
	if n.Port == 0 {
		n.Port = def.Port
	}
	if n.LANDevice == "" {
		n.LANDevice = def.LANDevice
	}
	if n.USBInterface == 0 {
		n.USBInterface = def.USBInterface
	}
	return n
}
