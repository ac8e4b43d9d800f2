package message

import (
	"fmt"

	"github.com/LabPy/lantz-core/config"
	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/resource"
)

// CommonKey addresses the settings layer shared by every interface type
// in a Defaults map.
const CommonKey = "COMMON"

// Defaults declares the communication settings a driver ships with,
// keyed by layer: CommonKey, a resource class ("INSTR"), an interface
// type ("ASRL") or both ("TCPIP::SOCKET"). More specific layers
// override broader ones, and caller-provided settings override
// everything. A nil entry declares the layer unsupported, so a driver
// can state that its instrument has no serial port.
type Defaults map[string]*config.CommSettings

// InterfaceClassKey builds the key of the (interface, class) layer.
func InterfaceClassKey(iface resource.InterfaceType, class resource.Class) string {
	return fmt.Sprintf("%s::%s", iface, class)
}

// Resolve computes the settings for a connection by stacking, lowest
// precedence first: site config for the interface type, the common
// layer, the resource class layer, the interface layer, the
// (interface, class) layer and finally user.
func (d Defaults) Resolve(iface resource.InterfaceType, class resource.Class,
	site config.CommConfig, user config.CommSettings) (config.CommSettings, error) {

	layers := make([]config.CommSettings, 0, 4)
	for _, key := range []string{
		InterfaceClassKey(iface, class),
		string(iface),
		string(class),
		CommonKey,
	} {
		settings, ok := d[key]
		if !ok {
			continue
		}
		if settings == nil {
			return config.CommSettings{}, errors.Wrapf(errors.ErrInterfaceNotSupported,
				"a %s instrument is not supported by this driver", key)
		}
		layers = append(layers, *settings)
	}
	layers = append(layers, site.ForInterface(string(iface)))

	return user.Merge(layers...), nil
}
