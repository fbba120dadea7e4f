package density

import (
	"fmt"

	"github.com/jengzang/zone-density/internal/spatial"
)

// ZoneBuffer is the fixed-radius disk around a zone's anchor
type ZoneBuffer struct {
	ZoneID string
	Disk   spatial.Disk
}

// GenerateBuffers builds one buffer per zone, all with the same radius, in the
// zone set's CRS and in zone order
func GenerateBuffers(zones *ZoneSet, radius float64) ([]ZoneBuffer, error) {
	buffers := make([]ZoneBuffer, zones.Len())
	for i := range buffers {
		z := zones.Zone(i)
		disk, err := spatial.NewDisk(z.Anchor, radius)
		if err != nil {
			return nil, fmt.Errorf("failed to buffer zone %q: %w", z.ID, err)
		}
		buffers[i] = ZoneBuffer{ZoneID: z.ID, Disk: disk}
	}
	return buffers, nil
}
