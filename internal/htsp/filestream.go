// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package htsp

import (
	"context"
	"fmt"
)

// fileReadChunk is the request size for each fileRead round trip.
const fileReadChunk int64 = 64 * 1024

// maxFileSize caps file transfers; channel icons are the only expected payload.
const maxFileSize = 16 << 20

// FetchFile reads a file exposed over the HTSP file API, typically a channel
// icon referenced as imagecache/NN. The file is opened, read in sequential
// chunks, and closed; fileClose needs no reply so it is fired and forgotten.
func (c *Connection) FetchFile(ctx context.Context, path string) ([]byte, error) {
	reply, err := c.Invoke(ctx, NewRequest("fileOpen").Set("file", path))
	if err != nil {
		return nil, fmt.Errorf("fileOpen %s: %w", path, err)
	}
	id := reply.GetInt64("id", -1)
	if id < 0 {
		return nil, fmt.Errorf("fileOpen %s: no file id in reply", path)
	}
	size := reply.GetInt64("size", 0)

	defer func() {
		_ = c.Send(NewRequest("fileClose").Set("id", id))
	}()

	if size > maxFileSize {
		return nil, fmt.Errorf("fileOpen %s: size %d exceeds limit", path, size)
	}

	var data []byte
	var offset int64
	for {
		req := NewRequest("fileRead").
			Set("id", id).
			Set("size", fileReadChunk).
			Set("offset", offset)
		reply, err := c.Invoke(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fileRead %s at %d: %w", path, offset, err)
		}
		chunk := reply.GetBin("data")
		if len(chunk) == 0 {
			break
		}
		data = append(data, chunk...)
		offset += int64(len(chunk))
		if int64(len(data)) > maxFileSize {
			return nil, fmt.Errorf("fileRead %s: transfer exceeds limit", path)
		}
		if size > 0 && offset >= size {
			break
		}
	}
	return data, nil
}
