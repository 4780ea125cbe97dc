package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
)

// ReadObject reads the raw content of any object (blob, tree, commit)
// by hash, the way "git cat-file" does.
func (r *Repository) ReadObject(ctx context.Context, typ Type, hash Hash) ([]byte, error) {
	out, err := r.cmd(ctx, "cat-file", string(typ), string(hash)).Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("cat-file %s %s: %w", typ, hash.Short(), err)
	}
	return out, nil
}

// WriteObject writes content as a loose object of the given type and
// returns its hash, the way "git hash-object -w" does.
func (r *Repository) WriteObject(ctx context.Context, typ Type, content []byte) (Hash, error) {
	cmd := r.cmd(ctx, "hash-object", "-w", "-t", string(typ), "--stdin").Stdin(bytes.NewReader(content))
	out, err := cmd.OutputString(ctx)
	if err != nil {
		return "", fmt.Errorf("hash-object -t %s: %w", typ, err)
	}
	return Hash(out), nil
}

// ObjectSize reports the size in bytes of an object's content,
// without transferring the content itself ("git cat-file -s").
func (r *Repository) ObjectSize(ctx context.Context, hash Hash) (int64, error) {
	out, err := r.cmd(ctx, "cat-file", "-s", string(hash)).OutputString(ctx)
	if err != nil {
		return 0, fmt.Errorf("cat-file -s %s: %w", hash.Short(), err)
	}
	return strconv.ParseInt(out, 10, 64)
}

// IsBinary reports whether the blob's content looks binary, using the
// same NUL-byte heuristic as "git diff"'s binary detection.
func (r *Repository) IsBinary(ctx context.Context, hash Hash) (bool, error) {
	content, err := r.ReadObject(ctx, BlobType, hash)
	if err != nil {
		return false, err
	}
	return bytes.IndexByte(content, 0) >= 0, nil
}

// IsBinary reports whether raw content looks binary by the same
// NUL-byte heuristic, for callers that have not yet written it as an
// object (e.g. a worktree read).
func IsBinary(content []byte) bool {
	return bytes.IndexByte(content, 0) >= 0
}
