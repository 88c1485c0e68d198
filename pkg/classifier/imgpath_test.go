package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImagePath(t *testing.T) {
	got := ImagePath("/images", "A123456789", "DM01", 1, "2024-03-01 08:00:00")
	assert.Equal(t, "/images/DM01/20240301080000DM01SP2A123456789Target.jpg", got)
}

func TestImagePath_StripsAllSeparators(t *testing.T) {
	got := ImagePath("/images", "A1", "DM02", 0, "2024-03-01T08:00:00")
	assert.Equal(t, "/images/DM02/20240301080000DM02SP1A1Target.jpg", got)
}
