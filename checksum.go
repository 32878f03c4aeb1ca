package exe2dll

import (
	"fmt"

	peparser "github.com/saferwall/pe"
)

// UpdateChecksum recomputes the optional header CheckSum over image and
// stores it. The rest of the image is left alone.
func UpdateChecksum(image []byte) (uint32, error) {
	img, err := Open(image)
	if err != nil {
		return 0, err
	}

	p, err := peparser.NewBytes(image, &peparser.Options{})
	if err != nil {
		return 0, fmt.Errorf("checksum: %w", err)
	}
	if err := p.Parse(); err != nil {
		return 0, fmt.Errorf("checksum: %w", err)
	}

	sum := p.Checksum()
	if !putU32(image, img.CheckSumOffset(), sum) {
		return 0, fmt.Errorf("%w: checksum field", ErrOffsetOutOfRange)
	}
	return sum, nil
}
