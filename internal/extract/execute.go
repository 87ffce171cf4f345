package extract

import (
	"bufio"
	"io"
	"os"

	"github.com/openwim/wimcore/internal/blobtable"
	"github.com/openwim/wimcore/internal/wimtree"
	"github.com/openwim/wimcore/internal/wimtypes"
)

// stagingChunkSize bounds how much of a staged blob is held in memory at
// once when fanning its content back out to a batch's sink.
const stagingChunkSize = 64 * 1024

// ReadBlob supplies a blob's decompressed content to Execute one chunk at a
// time, mirroring the external "read callback" protocol named in spec.md §5
// ("all blob reads... perform arbitrary I/O via the external read callback
// protocol"). emit may be called any number of times; returning a non-nil
// error aborts the read and is surfaced from Execute unchanged.
type ReadBlob func(blob *blobtable.Descriptor, emit func(chunk []byte) error) error

// Execute runs phases 7-10 of the plan: create directories, stream every
// selected blob to every alias target (each alias is tallied and written
// independently per phase 6, even when the backend supports hard links),
// then hard-link the non-primary aliases of each inode on top of their
// already-written duplicate (phase 7), and finally apply metadata to every
// dentry in reverse list order. Hard-linking runs after streaming so the
// primary alias's content exists on disk for the backend to link against.
// Pass a nil read to exercise only the backend's create/link/metadata calls
// without streaming content (useful for tests of the directory/hard-link/
// metadata structure alone).
func (p *Planner) Execute(plan *Plan, read ReadBlob) *wimtypes.WimError {
	if err := p.createDirectories(plan); err != nil {
		return err
	}
	if err := p.streamBlobs(plan, read); err != nil {
		return err
	}
	if err := p.createHardLinks(plan); err != nil {
		return err
	}
	return p.applyMetadata(plan)
}

// createDirectories creates every directory in forward pre-order, so a
// parent always exists before its children, ahead of phase 9's streaming.
func (p *Planner) createDirectories(plan *Plan) *wimtypes.WimError {
	for _, d := range plan.Dentries {
		if !d.IsDirectory() {
			continue
		}
		path := extractionPath(d)
		if err := p.backend.CreateDirectory(path, d.Inode); err != nil {
			return wimtypes.WrapError(wimtypes.ErrMkdir, path, err)
		}
	}
	return nil
}

// createHardLinks creates every hard-linked alias that is not its inode's
// designated primary (spec.md §4.10 phase 7: "backends with hard-link
// support extract the primary alias and create links for the rest"). This
// runs after streamBlobs so the primary alias's file already exists on disk
// for the backend to link against.
func (p *Planner) createHardLinks(plan *Plan) *wimtypes.WimError {
	features := p.backend.Features()
	if !features.HardLinks {
		return nil
	}
	for _, d := range plan.Dentries {
		if d.IsDirectory() || d.Inode == nil {
			continue
		}
		primary := d.Inode.FirstExtractionAlias()
		if primary == nil || primary == d {
			continue
		}
		path := extractionPath(d)
		if err := p.backend.CreateHardLink(path, extractionPath(primary)); err != nil {
			return wimtypes.WrapError(wimtypes.ErrLink, path, err)
		}
	}
	return nil
}

// streamBlobs implements phase 9: iterate the blob work list, grouping each
// blob's targets into batches no larger than MaxOpenFiles simultaneously
// open destinations. A blob whose targets fit in a single batch is read
// straight from read into that batch's sink. A blob with more targets than
// MaxOpenFiles is instead read exactly once into a staging file (spec.md
// §4.10 phase 9, "a blob is streamed once regardless of number of targets"),
// and each batch is then fed from that staged copy rather than from read
// again.
func (p *Planner) streamBlobs(plan *Plan, read ReadBlob) *wimtypes.WimError {
	for _, work := range plan.Blobs {
		batches := chunkTargets(work.Targets, wimtypes.MaxOpenFiles)
		if len(batches) <= 1 {
			if err := p.streamBatch(work.Blob, batches[0], read); err != nil {
				return err
			}
			continue
		}

		staged, werr := stageBlob(work.Blob, read)
		if werr != nil {
			return werr
		}
		err := func() *wimtypes.WimError {
			defer os.Remove(staged)
			for _, batch := range batches {
				if err := p.streamBatchFromStaging(work.Blob, batch, staged); err != nil {
					return err
				}
			}
			return nil
		}()
		if err != nil {
			return err
		}
	}
	return nil
}

// streamBatch opens one batch's sink and feeds it directly from read, for
// the common case where a blob's full target list fits in a single batch.
func (p *Planner) streamBatch(blob *blobtable.Descriptor, batch []Target, read ReadBlob) *wimtypes.WimError {
	paths := make([]string, len(batch))
	for i, t := range batch {
		paths[i] = extractionPath(t.Dentry)
	}

	sink, err := p.backend.BeginBlob(paths, blob)
	if err != nil {
		return wimtypes.WrapError(wimtypes.ErrOpen, blob.Hash.String(), err)
	}
	if read != nil {
		if rerr := read(blob, func(chunk []byte) error {
			return p.backend.ContinueBlob(sink, chunk)
		}); rerr != nil {
			return wimtypes.WrapError(wimtypes.ErrRead, blob.Hash.String(), rerr)
		}
	}
	if err := p.backend.EndBlob(sink); err != nil {
		return wimtypes.WrapError(wimtypes.ErrWrite, blob.Hash.String(), err)
	}
	return nil
}

// stageBlob reads blob's full content exactly once into a temporary file and
// returns its path, so every subsequent batch can be served from disk
// instead of invoking read again.
func stageBlob(blob *blobtable.Descriptor, read ReadBlob) (string, *wimtypes.WimError) {
	f, err := os.CreateTemp("", "wimcore-stage-*.tmp")
	if err != nil {
		return "", wimtypes.WrapError(wimtypes.ErrOpen, blob.Hash.String(), err)
	}
	path := f.Name()

	if read != nil {
		w := bufio.NewWriter(f)
		rerr := read(blob, func(chunk []byte) error {
			_, werr := w.Write(chunk)
			return werr
		})
		if rerr == nil {
			rerr = w.Flush()
		}
		if rerr != nil {
			f.Close()
			os.Remove(path)
			return "", wimtypes.WrapError(wimtypes.ErrRead, blob.Hash.String(), rerr)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", wimtypes.WrapError(wimtypes.ErrRead, blob.Hash.String(), err)
	}
	return path, nil
}

// streamBatchFromStaging opens one batch's sink and feeds it from the
// already-staged copy of blob's content at stagingPath, rather than reading
// blob again.
func (p *Planner) streamBatchFromStaging(blob *blobtable.Descriptor, batch []Target, stagingPath string) *wimtypes.WimError {
	paths := make([]string, len(batch))
	for i, t := range batch {
		paths[i] = extractionPath(t.Dentry)
	}

	sink, err := p.backend.BeginBlob(paths, blob)
	if err != nil {
		return wimtypes.WrapError(wimtypes.ErrOpen, blob.Hash.String(), err)
	}

	f, err := os.Open(stagingPath)
	if err != nil {
		return wimtypes.WrapError(wimtypes.ErrRead, blob.Hash.String(), err)
	}
	defer f.Close()

	buf := make([]byte, stagingChunkSize)
	r := bufio.NewReader(f)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if cerr := p.backend.ContinueBlob(sink, buf[:n]); cerr != nil {
				return wimtypes.WrapError(wimtypes.ErrWrite, blob.Hash.String(), cerr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return wimtypes.WrapError(wimtypes.ErrRead, blob.Hash.String(), rerr)
		}
	}

	if err := p.backend.EndBlob(sink); err != nil {
		return wimtypes.WrapError(wimtypes.ErrWrite, blob.Hash.String(), err)
	}
	return nil
}

// applyMetadata implements phase 10: apply object id, xattrs, security,
// timestamps and attributes in reverse dentry-list order, so every
// directory's children are finalized first.
func (p *Planner) applyMetadata(plan *Plan) *wimtypes.WimError {
	for i := len(plan.Dentries) - 1; i >= 0; i-- {
		d := plan.Dentries[i]
		path := extractionPath(d)
		if err := p.backend.ApplyMetadata(path, d); err != nil {
			return wimtypes.WrapError(wimtypes.ErrSetAttributes, path, err)
		}
	}
	return nil
}

// extractionPath rebuilds d's separator-joined path from the root using each
// ancestor's ExtractionName (phase 3's fabricated/validated name) rather
// than its on-disk Name, mirroring wimtree.FullPath's recursion.
func extractionPath(d *wimtree.Dentry) string {
	if d.IsRoot() {
		return "\\"
	}
	parent := extractionPath(d.Parent)
	if parent == "\\" {
		return parent + d.ExtractionName
	}
	return parent + "\\" + d.ExtractionName
}

// chunkTargets splits targets into groups of at most max entries each, so
// the backend is never asked to hold more than max simultaneously open
// destinations for a single blob. When this yields more than one batch,
// streamBlobs stages the blob to a temporary file once (spec.md §4.10 phase
// 9) and serves every batch from that staged copy, rather than re-reading
// the source blob per batch.
func chunkTargets(targets []Target, max int) [][]Target {
	if max <= 0 || len(targets) <= max {
		return [][]Target{targets}
	}
	var batches [][]Target
	for len(targets) > 0 {
		n := max
		if n > len(targets) {
			n = len(targets)
		}
		batches = append(batches, targets[:n])
		targets = targets[n:]
	}
	return batches
}
