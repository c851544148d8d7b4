package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/fjl/tcpxfer/fileserver"
)

const usage = `Usage: xfer-client [flags] <HOST:PORT> <REMOTE_PATH> <SAVE_PATH>
       xfer-client [flags] <xfer://HOST:PORT/REMOTE_PATH> <SAVE_PATH>`

func main() {
	var (
		chunkFlag     = flag.Int("chunk", fileserver.DefaultChunkSize, "transfer chunk size in bytes")
		timeoutFlag   = flag.Duration("timeout", 0, "timeout for connecting and for each socket read/write (0 = none)")
		verbosityFlag = flag.Int("verbosity", int(ethlog.LvlWarn), "log level (0-5)")
	)
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	h := ethlog.LvlFilterHandler(ethlog.Lvl(*verbosityFlag), ethlog.StreamHandler(os.Stderr, ethlog.TerminalFormat(true)))
	ethlog.Root().SetHandler(h)

	var ref fileserver.TransferRef
	args := flag.Args()
	switch len(args) {
	case 2:
		var err error
		if ref, err = fileserver.ParseURL(args[0]); err != nil {
			log.Fatalf("invalid URL: %v", err)
		}
	case 3:
		ref = fileserver.TransferRef{Addr: args[0], File: args[1]}
	default:
		log.Fatal(usage)
	}
	savePath := args[len(args)-1]

	client := fileserver.NewClient(fileserver.Config{
		ChunkSize:    *chunkFlag,
		DialTimeout:  *timeoutFlag,
		ReadTimeout:  *timeoutFlag,
		WriteTimeout: *timeoutFlag,
	})
	res, err := client.Transfer(context.Background(), ref.Addr, ref.File, savePath)
	if err != nil {
		log.Fatalf("transfer of %s failed: %v", ref.String(), err)
	}
	fmt.Printf("saved %s (%v, blake2b %x)\n", savePath, common.StorageSize(res.Size), res.Digest)
}
