package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain bytes", "1024", 1024, false},
		{"bytes suffix", "1024B", 1024, false},
		{"kibibytes Ki", "64Ki", 64 * KiB, false},
		{"kibibytes KiB", "64KiB", 64 * KiB, false},
		{"mebibytes", "100MiB", 100 * MiB, false},
		{"gibibytes lowercase", "1gi", GiB, false},
		{"kilobytes", "1KB", 1000, false},
		{"megabytes", "100MB", 100 * MB, false},
		{"with space", "512 MiB", 512 * MiB, false},
		{"surrounding space", "  1GiB  ", GiB, false},
		{"fraction", "1.5KiB", 1536, false},
		{"empty", "", 0, true},
		{"blank", "   ", 0, true},
		{"unknown unit", "10XB", 0, true},
		{"garbage", "lots", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   ByteSize
		want string
	}{
		{0, "0"},
		{1000, "1000"},
		{64 * KiB, "64KiB"},
		{1536 * KiB, "1536KiB"},
		{2 * GiB, "2GiB"},
		{TiB, "1TiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String())
		back, err := ParseByteSize(tt.in.String())
		require.NoError(t, err)
		assert.Equal(t, tt.in, back)
	}
}

func TestText(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("4MiB")))
	assert.Equal(t, 4*MiB, b)
	text, err := b.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "4MiB", string(text))
	assert.Error(t, b.UnmarshalText([]byte("nope")))

	assert.Equal(t, "1.5 GiB", (GiB + 512*MiB).Human())
	assert.Equal(t, 4194304, b.Int())
}
