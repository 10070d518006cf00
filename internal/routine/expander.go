package routine

var labSplits = map[int][]int{
	2: {2},
	3: {3},
	4: {2, 2},
	6: {3, 3},
}

// SplitLabPeriods decomposes a lab period total into contiguous blocks.
func SplitLabPeriods(n int) []int {
	if n <= 0 {
		return nil
	}
	if fixed, ok := labSplits[n]; ok {
		return append([]int(nil), fixed...)
	}
	var blocks []int
	for n > 0 {
		switch {
		case n >= 3:
			blocks = append(blocks, 3)
			n -= 3
		case n >= 2:
			blocks = append(blocks, 2)
			n -= 2
		default:
			blocks = append(blocks, 1)
			n--
		}
	}
	return blocks
}

// ExpandLoad flattens load items into placeable units, theory first.
func ExpandLoad(items []LoadItem) []PlaceableUnit {
	var units []PlaceableUnit
	for _, item := range items {
		total := item.TheoryCount + item.LabCount
		for i := 0; i < item.TheoryCount; i++ {
			units = append(units, PlaceableUnit{
				Subject:     item.Subject,
				SubjectCode: item.SubjectCode,
				Teacher:     item.Teacher,
				Type:        Theory,
				Duration:    1,
				TotalLoad:   total,
			})
		}
		for _, block := range SplitLabPeriods(item.LabCount) {
			units = append(units, PlaceableUnit{
				Subject:     item.Subject,
				SubjectCode: item.SubjectCode,
				Teacher:     item.Teacher,
				Type:        Lab,
				Duration:    block,
				TotalLoad:   total,
			})
		}
	}
	return units
}
