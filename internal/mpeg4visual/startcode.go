package mpeg4visual

// splitStartCodes scans buf for 00 00 01 XX start codes and returns the
// units found between them, along with the buffer offset each unit's start
// code began at (so a caller merging carried-over bytes from a previous
// call can tell which original Feed call a unit's bytes actually arrived
// with). The final run, if any start code precedes it but no further start
// code terminates it, is returned as tail to be prepended to the next Feed
// call (mirrors h264.splitAnnexB).
func splitStartCodes(buf []byte) (units []unit, positions []int, tail []byte) {
	starts := findStartCodes(buf)
	if len(starts) == 0 {
		return nil, nil, buf
	}
	for i, pos := range starts {
		end := len(buf)
		if i+1 < len(starts) {
			end = starts[i+1]
		} else {
			tail = buf[pos:]
			break
		}
		code := buf[pos+3]
		payload := buf[pos+4 : end]
		units = append(units, unit{code: code, payload: payload})
		positions = append(positions, pos)
	}
	return units, positions, tail
}

// findStartCodes returns the byte offset of every 00 00 01 sequence in buf.
func findStartCodes(buf []byte) []int {
	var out []int
	for i := 0; i+3 < len(buf); i++ {
		if buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 1 {
			out = append(out, i)
		}
	}
	return out
}
