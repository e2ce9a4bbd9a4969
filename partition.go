package kmertop

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/jcalabro/kmertop/filter"
	"github.com/ledgerwatch/log/v3"
	"github.com/pkg/errors"
)

// PartitionHash is the default hash used to shard tokens. It must differ
// from the filters' xxh3, or a partition's tokens would share filter bits.
func PartitionHash(tok []byte) uint64 {
	return xxhash.Sum64(tok)
}

// PartitionedCounter bounds memory by sharding tokens to disk.
//
// Each of Plan.Iterations rounds re-reads the whole source. A token with
// hash h belongs to iteration h mod Iterations and, within it, to
// partition (h / Iterations) mod Partitions. The shard phase appends each
// of the iteration's tokens to its partition file; the count phase then
// runs a single pass over one partition file at a time, deleting the file
// and releasing the filter before moving on to the next.
type PartitionedCounter struct {
	Plan Plan

	// Filter configures each partition's filter. Capacity is taken from
	// Plan.FilterCapacity.
	Filter filter.Options

	Codec Codec

	// Dir is an existing directory for partition files. Only one
	// iteration's files exist at a time, named by partition index.
	Dir string

	// Hash shards tokens. Nil means PartitionHash.
	Hash func([]byte) uint64

	Observer Observer
	Logger   log.Logger
}

// Count implements Counter. On failure every partition file created so
// far is removed before the error is returned.
func (c *PartitionedCounter) Count(src TokenSource, top *TopK) error {
	switch {
	case c.Plan.Iterations == 0:
		return errors.Wrap(ErrParameter, "plan has no iterations")
	case c.Plan.Partitions == 0:
		return errors.Wrap(ErrParameter, "plan has no partitions")
	case c.Plan.FilterCapacity == 0:
		return errors.Wrap(ErrParameter, "plan has a zero filter capacity")
	}
	for it := range c.Plan.Iterations {
		paths, err := c.shard(src, it)
		if err != nil {
			return err
		}
		if err := c.countPartitions(paths, it, top); err != nil {
			return err
		}
	}
	return nil
}

func (c *PartitionedCounter) logger() log.Logger {
	if c.Logger == nil {
		return discardLogger()
	}
	return c.Logger
}

func (c *PartitionedCounter) hash(tok []byte) uint64 {
	if c.Hash == nil {
		return PartitionHash(tok)
	}
	return c.Hash(tok)
}

// partitionPath names partition j's file.
func (c *PartitionedCounter) partitionPath(j uint64) string {
	return filepath.Join(c.Dir, strconv.FormatUint(j, 10)+".part")
}

// shard streams src once, writing the tokens of iteration it to their
// partition files, and returns the paths of the closed files.
func (c *PartitionedCounter) shard(src TokenSource, it uint64) (paths []string, err error) {
	iters, parts := c.Plan.Iterations, c.Plan.Partitions
	logger := c.logger()

	writers := make([]*partitionWriter, 0, parts)
	defer func() {
		if err == nil {
			return
		}
		for _, w := range writers {
			_ = w.file.Close()
		}
		c.removeAll(paths)
	}()

	for j := range parts {
		path := c.partitionPath(j)
		w, werr := createPartition(path, c.Codec)
		if werr != nil {
			return paths, resourceErr(werr, "create partition %d of iteration %d", j, it)
		}
		writers = append(writers, w)
		paths = append(paths, path)
	}
	logger.Debug("partitions created", "iteration", it, "partitions", parts, "dir", c.Dir)

	c.Observer.emit(Event{Kind: EventShardStart, Iteration: int(it), Partition: -1})

	tokens, err := src.Open()
	if err != nil {
		return paths, err
	}
	defer tokens.Close()

	var read, written uint64
	for tokens.Next() {
		tok := tokens.Token()
		h := c.hash(tok)
		read++
		if read%progressInterval == 0 {
			c.Observer.emit(Event{Kind: EventProgress, Iteration: int(it), Partition: -1, Tokens: read})
		}
		if h%iters != it {
			continue
		}
		j := (h / iters) % parts
		if werr := writers[j].write(tok); werr != nil {
			return paths, resourceErr(werr, "write partition %d of iteration %d", j, it)
		}
		written++
	}
	if err := tokens.Err(); err != nil {
		return paths, err
	}

	for j, w := range writers {
		if cerr := w.close(); cerr != nil {
			writers = writers[j+1:]
			return paths, resourceErr(cerr, "close partition %d of iteration %d", j, it)
		}
	}
	writers = nil

	c.Observer.emit(Event{Kind: EventShardDone, Iteration: int(it), Partition: -1, Tokens: written})
	logger.Debug("shard phase done", "iteration", it, "read", read, "written", written)
	return paths, nil
}

// countPartitions runs a single pass over each partition file of iteration
// it in turn, deleting each file once it has been counted.
func (c *PartitionedCounter) countPartitions(paths []string, it uint64, top *TopK) error {
	opts := c.Filter
	opts.Capacity = c.Plan.FilterCapacity

	for j, path := range paths {
		if err := c.countPartition(path, opts, int(it), j, top); err != nil {
			c.removeAll(paths[j:])
			return err
		}
		if err := os.Remove(path); err != nil {
			c.removeAll(paths[j+1:])
			return resourceErr(err, "remove partition %d of iteration %d", j, it)
		}
		c.logger().Debug("partition removed", "iteration", it, "partition", j)
	}
	return nil
}

func (c *PartitionedCounter) countPartition(path string, opts filter.Options, it, j int, top *TopK) error {
	r, err := openPartition(path, c.Codec)
	if err != nil {
		return resourceErr(err, "open partition %d of iteration %d", j, it)
	}
	defer r.Close()

	p := pass{filter: opts, observer: c.Observer, logger: c.Logger, iteration: it, partition: j}
	return p.run(r, top)
}

// removeAll deletes partition files, logging failures.
func (c *PartitionedCounter) removeAll(paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger().Warn("failed to remove partition file", "path", path, "err", err)
		}
	}
}
