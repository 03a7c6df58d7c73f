package container

import (
	"io"

	"github.com/dfam-consortium/famdb"
)

// writeFamily / readFamily encode a Family as a closed record type (spec
// §9 "Dynamic-typing reflection"): every field is written in a fixed
// order, empty ones as empty values; only Version and GeneralCutoff carry
// an explicit present/absent flag.
func writeFamily(w io.Writer, f *famdb.Family) error {
	if err := writeString(w, f.Accession); err != nil {
		return err
	}
	if err := writeOptionalInt(w, f.Version); err != nil {
		return err
	}
	if err := writeString(w, f.Name); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(f.Length)); err != nil {
		return err
	}

	for _, s := range []string{
		f.Title, f.Author, f.Description, f.Classification,
		f.RepeatType, f.RepeatSubtype, f.DateCreated, f.DateModified,
	} {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	if err := writeUint32Slice(w, f.Clades); err != nil {
		return err
	}

	if err := writeIntSlice(w, f.SearchStages); err != nil {
		return err
	}
	if err := writeStringSlice(w, f.BufferStages); err != nil {
		return err
	}
	if err := writeBool(w, f.Refineable); err != nil {
		return err
	}
	if err := writeString(w, f.TargetSiteCons); err != nil {
		return err
	}

	if err := writeBlob(w, []byte(f.Model)); err != nil {
		return err
	}
	if err := writeBlob(w, []byte(f.Consensus)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(f.MaxLength)); err != nil {
		return err
	}
	if err := writeBool(w, f.IsModelMasked); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(f.SeedCount)); err != nil {
		return err
	}
	if err := writeString(w, f.BuildMethod); err != nil {
		return err
	}
	if err := writeString(w, f.SearchMethod); err != nil {
		return err
	}
	if err := writeJSON(w, f.TaxaThresholds); err != nil {
		return err
	}
	if err := writeOptionalFloat(w, f.GeneralCutoff); err != nil {
		return err
	}

	for _, s := range []string{f.Features, f.CodingSequences, f.Aliases, f.Citations} {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readFamily(r io.Reader) (*famdb.Family, error) {
	f := &famdb.Family{}
	var err error

	if f.Accession, err = readString(r); err != nil {
		return nil, err
	}
	if f.Version, err = readOptionalInt(r); err != nil {
		return nil, err
	}
	if f.Name, err = readString(r); err != nil {
		return nil, err
	}
	var length uint32
	if length, err = readUint32(r); err != nil {
		return nil, err
	}
	f.Length = int(length)

	fields := []*string{
		&f.Title, &f.Author, &f.Description, &f.Classification,
		&f.RepeatType, &f.RepeatSubtype, &f.DateCreated, &f.DateModified,
	}
	for _, p := range fields {
		if *p, err = readString(r); err != nil {
			return nil, err
		}
	}
	if f.Clades, err = readUint32Slice(r); err != nil {
		return nil, err
	}

	if f.SearchStages, err = readIntSlice(r); err != nil {
		return nil, err
	}
	if f.BufferStages, err = readStringSlice(r); err != nil {
		return nil, err
	}
	if f.Refineable, err = readBool(r); err != nil {
		return nil, err
	}
	if f.TargetSiteCons, err = readString(r); err != nil {
		return nil, err
	}

	modelBytes, err := readBlob(r)
	if err != nil {
		return nil, err
	}
	f.Model = string(modelBytes)
	consensusBytes, err := readBlob(r)
	if err != nil {
		return nil, err
	}
	f.Consensus = string(consensusBytes)

	var maxLength uint32
	if maxLength, err = readUint32(r); err != nil {
		return nil, err
	}
	f.MaxLength = int(maxLength)
	if f.IsModelMasked, err = readBool(r); err != nil {
		return nil, err
	}
	var seedCount uint32
	if seedCount, err = readUint32(r); err != nil {
		return nil, err
	}
	f.SeedCount = int(seedCount)
	if f.BuildMethod, err = readString(r); err != nil {
		return nil, err
	}
	if f.SearchMethod, err = readString(r); err != nil {
		return nil, err
	}
	if err = readJSON(r, &f.TaxaThresholds); err != nil {
		return nil, err
	}
	if f.GeneralCutoff, err = readOptionalFloat(r); err != nil {
		return nil, err
	}

	blobFields := []*string{&f.Features, &f.CodingSequences, &f.Aliases, &f.Citations}
	for _, p := range blobFields {
		if *p, err = readString(r); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func writeOptionalInt(w io.Writer, v *int) error {
	if v == nil {
		return writeBool(w, false)
	}
	if err := writeBool(w, true); err != nil {
		return err
	}
	return writeUint32(w, uint32(*v))
}

func readOptionalInt(r io.Reader) (*int, error) {
	present, err := readBool(r)
	if err != nil || !present {
		return nil, err
	}
	u, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	v := int(u)
	return &v, nil
}

func writeOptionalFloat(w io.Writer, v *float64) error {
	if v == nil {
		return writeBool(w, false)
	}
	if err := writeBool(w, true); err != nil {
		return err
	}
	return writeJSON(w, *v)
}

func readOptionalFloat(r io.Reader) (*float64, error) {
	present, err := readBool(r)
	if err != nil || !present {
		return nil, err
	}
	var v float64
	if err := readJSON(r, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func writeUint32Slice(w io.Writer, vs []uint32) error {
	if err := writeUint32(w, uint32(len(vs))); err != nil {
		return err
	}
	for _, v := range vs {
		if err := writeUint32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readUint32Slice(r io.Reader) ([]uint32, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]uint32, n)
	for i := range out {
		if out[i], err = readUint32(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeIntSlice(w io.Writer, vs []int) error {
	u := make([]uint32, len(vs))
	for i, v := range vs {
		u[i] = uint32(v)
	}
	return writeUint32Slice(w, u)
}

func readIntSlice(r io.Reader) ([]int, error) {
	u, err := readUint32Slice(r)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	out := make([]int, len(u))
	for i, v := range u {
		out[i] = int(v)
	}
	return out, nil
}

func writeStringSlice(w io.Writer, vs []string) error {
	if err := writeUint32(w, uint32(len(vs))); err != nil {
		return err
	}
	for _, v := range vs {
		if err := writeString(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readStringSlice(r io.Reader) ([]string, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = readString(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}
