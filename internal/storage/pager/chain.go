package pager

// ───────────────────────────────────────────────────────────────────────────
// Overflow chains — generic oversize-payload storage
// ───────────────────────────────────────────────────────────────────────────
//
// WriteChain/ReadChain/FreeChain store an arbitrary byte slice across a
// singly-linked run of overflow pages. Both the B+Tree (for values above
// the inline threshold) and the catalog (for a serialized schema blob too
// large for one page) use these helpers so the overflow-chain format has a
// single implementation.

// WriteChain splits data across as many overflow pages as needed and
// returns the PageID of the first page in the chain. An empty slice still
// allocates one (empty) overflow page so ReadChain has something to walk.
func (p *Pager) WriteChain(txID TxID, data []byte) (PageID, error) {
	cap := OverflowCapacity(p.pageSize)
	var headID PageID
	var prevBuf []byte
	var prevID PageID

	if len(data) == 0 {
		pid, buf := p.AllocPage()
		op := InitOverflowPage(buf, pid)
		_ = op.SetData(nil)
		SetPageCRC(buf)
		if err := p.WritePage(txID, pid, buf); err != nil {
			return 0, err
		}
		p.UnpinPage(pid)
		return pid, nil
	}

	for off := 0; off < len(data); off += cap {
		end := off + cap
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]

		pid, buf := p.AllocPage()
		op := InitOverflowPage(buf, pid)
		if err := op.SetData(chunk); err != nil {
			return 0, err
		}

		if prevBuf != nil {
			prevOP := WrapOverflowPage(prevBuf)
			prevOP.SetNextOverflow(pid)
			SetPageCRC(prevBuf)
			if err := p.WritePage(txID, prevID, prevBuf); err != nil {
				return 0, err
			}
			p.UnpinPage(prevID)
		} else {
			headID = pid
		}

		prevBuf = buf
		prevID = pid
	}

	if prevBuf != nil {
		SetPageCRC(prevBuf)
		if err := p.WritePage(txID, prevID, prevBuf); err != nil {
			return 0, err
		}
		p.UnpinPage(prevID)
	}

	return headID, nil
}

// ReadChain reassembles the full payload starting at headID. totalSize, if
// known, preallocates the result buffer; pass 0 when the size is unknown
// and the chain's own page lengths will be used instead.
func (p *Pager) ReadChain(headID PageID, totalSize uint32) ([]byte, error) {
	result := make([]byte, 0, totalSize)
	pid := headID
	for pid != InvalidPageID {
		buf, err := p.ReadPage(pid)
		if err != nil {
			return nil, err
		}
		op := WrapOverflowPage(buf)
		result = append(result, op.Data()...)
		next := op.NextOverflow()
		p.UnpinPage(pid)
		pid = next
	}
	return result, nil
}

// FreeChain releases every page in an overflow chain back to the free-list.
func (p *Pager) FreeChain(headID PageID) {
	pid := headID
	for pid != InvalidPageID {
		buf, err := p.ReadPage(pid)
		if err != nil {
			break
		}
		op := WrapOverflowPage(buf)
		next := op.NextOverflow()
		p.UnpinPage(pid)
		p.FreePage(pid)
		pid = next
	}
}
