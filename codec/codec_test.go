package codec

import "testing"

func TestOffsetEncodingRoundTrips(t *testing.T) {
	for x := -255; x <= 255; x++ {
		v := EncodeOffset(x)
		got := DecodeOffset(v)
		if got != x {
			t.Fatalf("DecodeOffset(EncodeOffset(%d)) = %d", x, got)
		}
	}
}

func TestOffsetEncodingClamps(t *testing.T) {
	if v := EncodeOffset(1000); v != EncodeOffset(255) {
		t.Fatalf("EncodeOffset(1000) = %d, want clamp to EncodeOffset(255) = %d", v, EncodeOffset(255))
	}
	if v := EncodeOffset(-1000); v != EncodeOffset(-255) {
		t.Fatalf("EncodeOffset(-1000) = %d, want clamp to EncodeOffset(-255) = %d", v, EncodeOffset(-255))
	}
}

func TestSampleModsNoMarginBit(t *testing.T) {
	withMargin := BuildSampleMods(0x02, 120)
	if withMargin&NoMarginBit != 0 {
		t.Fatalf("no-margin bit set with margin=120")
	}
	noMargin := BuildSampleMods(0x02, 0)
	if noMargin&NoMarginBit == 0 {
		t.Fatalf("no-margin bit not set with margin=0")
	}

	blk, err := DecodeScanMode(make([]byte, ScanModeLen))
	if err != nil {
		t.Fatalf("DecodeScanMode: %v", err)
	}
	blk.SetSampleMods(withMargin)
	if blk.HasNoMargin() {
		t.Fatalf("HasNoMargin() = true for margin=120 sample_mods")
	}
	blk.SetSampleMods(noMargin)
	if !blk.HasNoMargin() {
		t.Fatalf("HasNoMargin() = false for margin=0 sample_mods")
	}
}

func TestInquiryRoundTrip(t *testing.T) {
	raw := make([]byte, InquiryLen)
	copy(raw[8:16], CanonicalVendor)
	copy(raw[16:26], CanonicalProduct)
	copy(raw[32:36], "1.00")
	b, err := DecodeInquiry(raw)
	if err != nil {
		t.Fatalf("DecodeInquiry: %v", err)
	}
	if !b.IsCanonical() {
		t.Fatalf("IsCanonical() = false for canonical strings")
	}
	if b.Revision() != "1.00" {
		t.Fatalf("Revision() = %q", b.Revision())
	}
}

func TestInquiryWrongLength(t *testing.T) {
	if _, err := DecodeInquiry(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for wrong-length inquiry block")
	}
}

func TestFilmStatusCarriageOffsets(t *testing.T) {
	off, ok := CarriageOffset(HolderNegative, 3)
	if !ok || off != 2038 {
		t.Fatalf("CarriageOffset(negative, 3) = (%d, %v), want (2038, true)", off, ok)
	}
	if _, ok := CarriageOffset(HolderSlide, 4); ok {
		t.Fatalf("CarriageOffset(slide, 4) should be out of range")
	}
}

func TestKnownHolderType(t *testing.T) {
	if !KnownHolderType(HolderNegative) || !KnownHolderType(HolderSlide) {
		t.Fatalf("negative and slide holder types should be known")
	}
	if KnownHolderType(HolderNone) || KnownHolderType(7) {
		t.Fatalf("no-holder and unrecognised holder types should not be known")
	}
}

func TestScanModeReadModifyWritePreservesReserved(t *testing.T) {
	raw := make([]byte, ScanModeLen)
	for i := range raw {
		raw[i] = 0xAA
	}
	b, err := DecodeScanMode(raw)
	if err != nil {
		t.Fatalf("DecodeScanMode: %v", err)
	}
	b.SetSpeed(2)
	if b.Bytes()[1] != 0xAA {
		t.Fatalf("byte 1 (reserved) was clobbered by SetSpeed")
	}
	if b.Bytes()[41] != 0xAA {
		t.Fatalf("trailing reserved byte was clobbered")
	}
}

func TestBitsCodeFor(t *testing.T) {
	cases := map[int]byte{8: BitsCode8, 16: BitsCode16, 14: BitsCode14}
	for mode, want := range cases {
		got, err := BitsCodeFor(mode)
		if err != nil {
			t.Fatalf("BitsCodeFor(%d): %v", mode, err)
		}
		if got != want {
			t.Fatalf("BitsCodeFor(%d) = %#x, want %#x", mode, got, want)
		}
	}
	if _, err := BitsCodeFor(12); err == nil {
		t.Fatalf("expected error for unsupported in_mode")
	}
}
