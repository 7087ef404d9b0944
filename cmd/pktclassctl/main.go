// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command pktclassctl loads an HCL rule file, compiles it into a
// classifier, and either dumps its compiled shape or runs a single
// synthetic packet through it and prints the resulting action list.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coreswitch/pktclass/classify"
	"github.com/coreswitch/pktclass/internal/config"
	"github.com/coreswitch/pktclass/internal/metrics"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "compile":
		err = runCompile(args[1:])
	case "query":
		err = runQuery(args[1:])
	case "dump":
		err = runDump(args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("pktclassctl: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pktclassctl <command> -rules <file.hcl> [flags]

commands:
  compile -rules <file>                 load and compile a rule file, report stats
  dump    -rules <file>                  compile and print the filter's debug YAML
  query   -rules <file> [-dst-ip4 ip] [-dst-port n] [-src-port n] [-proto n]
                                         compile and classify one synthetic packet`)
}

func loadAndCompile(rulesPath string) (*classify.Filter, error) {
	rs, err := config.LoadRuleFile(rulesPath)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	f, err := classify.Compile(rs.Signature, rs.Rules, classify.WithBuildTime(buildTime))
	if err != nil {
		return nil, err
	}
	metrics.ObserveCompileDuration(time.Since(start))
	return f, nil
}

// buildTime stamps every filter compiled by this CLI invocation; a
// single process run only ever compiles filters at one logical instant.
var buildTime = fixedBuildTime()

func fixedBuildTime() time.Time {
	if v := os.Getenv("PKTCLASSCTL_BUILD_TIME"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func runCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	rulesPath := fs.String("rules", "", "path to an HCL rule file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rulesPath == "" {
		return fmt.Errorf("-rules is required")
	}

	f, err := loadAndCompile(*rulesPath)
	if err != nil {
		return err
	}
	defer f.Free()

	fmt.Printf("filter %s: %d rules, %d attrs, %d root classifiers\n",
		f.ID, f.Stats.NumRules, f.Stats.NumAttrs, f.Stats.RootClassifiers)
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	rulesPath := fs.String("rules", "", "path to an HCL rule file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rulesPath == "" {
		return fmt.Errorf("-rules is required")
	}

	f, err := loadAndCompile(*rulesPath)
	if err != nil {
		return err
	}
	defer f.Free()

	out, err := f.DebugDump()
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	rulesPath := fs.String("rules", "", "path to an HCL rule file")
	srcIP4 := fs.String("src-ip4", "", "source IPv4 address, e.g. 10.0.0.1")
	dstIP4 := fs.String("dst-ip4", "", "destination IPv4 address")
	srcPort := fs.Uint("src-port", 0, "source port")
	dstPort := fs.Uint("dst-port", 0, "destination port")
	proto := fs.Uint("proto", 0, "IP protocol number")
	vlan := fs.Uint("vlan", 0, "VLAN id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rulesPath == "" {
		return fmt.Errorf("-rules is required")
	}

	f, err := loadAndCompile(*rulesPath)
	if err != nil {
		return err
	}
	defer f.Free()

	pkt := &classify.Packet{
		SrcPort: uint16(*srcPort),
		DstPort: uint16(*dstPort),
		Proto:   uint8(*proto),
		VLAN:    uint16(*vlan),
	}
	if *srcIP4 != "" {
		pkt.SrcIP4, err = parseIPv4(*srcIP4)
		if err != nil {
			return err
		}
	}
	if *dstIP4 != "" {
		pkt.DstIP4, err = parseIPv4(*dstIP4)
		if err != nil {
			return err
		}
	}

	actions := f.Query(pkt)
	if len(actions) == 0 {
		fmt.Println("no match")
		return nil
	}
	for _, a := range actions {
		fmt.Printf("action=%d terminal=%v category=%s\n",
			classify.ActionPayload(a), classify.IsTerminal(a), hex.EncodeToString([]byte{byte(classify.CategoryMask(a) >> 8), byte(classify.CategoryMask(a))}))
	}
	return nil
}

func parseIPv4(s string) ([4]byte, error) {
	var out [4]byte
	var a, b, c, d int
	n, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &d)
	if err != nil || n != 4 {
		return out, fmt.Errorf("invalid IPv4 address %q", s)
	}
	for _, v := range []int{a, b, c, d} {
		if v < 0 || v > 255 {
			return out, fmt.Errorf("invalid IPv4 address %q", s)
		}
	}
	out = [4]byte{byte(a), byte(b), byte(c), byte(d)}
	return out, nil
}
