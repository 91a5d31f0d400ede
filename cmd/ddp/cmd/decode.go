package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
	"github.com/tsarna/ddp/pkg/ddp/message"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode [files...]",
	Short: "Decode captured DDP frames",
	Long: `Decode DDP frames, one JSON text per line, and print how a client
would classify each of them.

Frames are read from the named files, or from stdin when none are given.
Each output line holds the message kind and the normalized frame. Errors
carry their reason, and errors with a 401 or 403 code are flagged as
authentication errors.

With --jq, the expression is evaluated against every decoded frame and its
results are printed as JSON instead.

Examples:
  ddp decode capture.log
  echo '{"msg":"ping"}' | ddp decode
  ddp decode --jq 'select(.msg == "added") | .fields' capture.log`,
	RunE: runDecode,
}

var (
	jqExpr     string
	skipBlanks bool
)

// maxFrameSize bounds a single input line.
const maxFrameSize = 16 << 20

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVar(&jqExpr, "jq", "", "jq expression applied to each decoded frame")
	decodeCmd.Flags().BoolVar(&skipBlanks, "skip-blank", true, "ignore blank input lines")
}

func runDecode(cmd *cobra.Command, args []string) error {
	var code *gojq.Code
	if jqExpr != "" {
		var err error
		if code, err = compileJQ(jqExpr); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		return decodeStream(cmd.InOrStdin(), out, code)
	}

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		err = decodeStream(f, out, code)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func compileJQ(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	return code, nil
}

// decodeStream decodes every line of r and writes the result to w. A nil
// code selects the default summary format.
func decodeStream(r io.Reader, w io.Writer, code *gojq.Code) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	for scanner.Scan() {
		line := scanner.Text()
		if skipBlanks && strings.TrimSpace(line) == "" {
			continue
		}

		msg := message.Decode(line)
		var err error
		if code != nil {
			err = writeQuery(w, code, msg)
		} else {
			err = writeSummary(w, msg)
		}
		if err != nil {
			return err
		}
	}
	return scanner.Err()
}

func writeSummary(w io.Writer, msg message.Message) error {
	var b strings.Builder
	b.WriteString(msg.Kind().String())
	b.WriteByte('\t')
	b.WriteString(msg.String())

	if msg.IsError() {
		reason := msg.Reason()
		auth := false
		if perr := msg.ProtocolError(); perr != nil {
			reason = perr.Error()
			auth = perr.IsAuthError()
		}
		fmt.Fprintf(&b, "\terror=%q", reason)
		if auth {
			b.WriteString("\tauth=true")
		}
	}

	_, err := fmt.Fprintln(w, b.String())
	return err
}

func writeQuery(w io.Writer, code *gojq.Code, msg message.Message) error {
	iter := code.Run(msg.Attributes())
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := v.(error); ok {
			return fmt.Errorf("jq: %w", err)
		}

		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode jq result: %w", err)
		}
		if _, err := fmt.Fprintln(w, string(out)); err != nil {
			return err
		}
	}
}
