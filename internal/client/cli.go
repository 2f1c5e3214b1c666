package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/webforum-dev/webforum/shared/config"
	"github.com/webforum-dev/webforum/shared/protocol"
)

// CLI is the interactive front end: it parses typed commands, drives the
// requester and transfer helpers, and prints results. It is plumbing around
// the protocol engine, not part of it.
type CLI struct {
	requester *Requester
	transfer  *Transfer
	cfg       *config.Config

	in       *bufio.Scanner
	out      io.Writer
	username string
}

func NewCLI(cfg *config.Config, requester *Requester, transfer *Transfer, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		requester: requester,
		transfer:  transfer,
		cfg:       cfg,
		in:        bufio.NewScanner(in),
		out:       out,
	}
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *CLI) readLine() (string, bool) {
	if !c.in.Scan() {
		return "", false
	}
	return c.in.Text(), true
}

func (c *CLI) Run() error {
	if err := c.authenticate(); err != nil {
		return err
	}
	return c.commandLoop()
}

// authenticate runs the FIRST_CONN/LOGIN exchange until the server accepts
// a username/password pair.
func (c *CLI) authenticate() error {
	for {
		c.printf("Enter username: ")
		username, ok := c.readLine()
		if !ok {
			return errors.New("input closed")
		}
		if username == "" {
			c.printf("Enter an actual username!!!\n")
			continue
		}

		reply, err := c.requester.Send(protocol.Event{
			Action: protocol.FirstConn, Status: protocol.FromClient,
			Username: username, Content: "Log in request",
		})
		if err != nil {
			return err
		}
		if reply.Status != protocol.Success {
			c.printf("%s\n", reply.Content)
			continue
		}
		c.printf("%s", reply.Content)

		password, ok := c.readLine()
		if !ok {
			return errors.New("input closed")
		}

		reply, err = c.requester.Send(protocol.Event{
			Action: protocol.Login, Status: protocol.FromClient,
			Username: username, Content: password,
		})
		if err != nil {
			return err
		}
		if reply.Status == protocol.Success {
			c.printf("Welcome to WebForum!!\n")
			c.username = username
			return nil
		}
		c.printf("%s\n", reply.Content)
	}
}

func commandAction(word string) (protocol.Action, bool) {
	if len(word) > 3 {
		return 0, false
	}
	switch word {
	case "CRT":
		return protocol.CreateThread, true
	case "MSG":
		return protocol.PostMessage, true
	case "DLT":
		return protocol.DeleteMessage, true
	case "EDT":
		return protocol.EditMessage, true
	case "LST":
		return protocol.ListThreads, true
	case "RDT":
		return protocol.ReadThread, true
	case "UPD":
		return protocol.Upload, true
	case "DWN":
		return protocol.Download, true
	case "RMV":
		return protocol.RemoveThread, true
	case "XIT":
		return protocol.Exit, true
	}
	return 0, false
}

func (c *CLI) exec(action protocol.Action, content string) (protocol.Event, error) {
	return c.requester.Send(protocol.Event{
		Action: action, Status: protocol.FromClient,
		Username: c.username, Content: content,
	})
}

func (c *CLI) commandLoop() error {
	for {
		c.printf("Enter one of the following commands: CRT, MSG, DLT, EDT, LST, RDT, UPD, DWN, RMV, XIT: \n")

		line, ok := c.readLine()
		if !ok {
			return nil
		}
		words := strings.Fields(line)
		if len(words) == 0 {
			c.printf("Please enter an actual command!!\n")
			continue
		}

		action, known := commandAction(words[0])
		if !known {
			c.printf("Invalid command\n")
			continue
		}
		args := words[1:]
		content := strings.Join(args, " ")

		var err error
		switch action {
		case protocol.CreateThread:
			err = c.simpleCommand(action, args, 1, "Usage: CRT <threadtitle>")
		case protocol.PostMessage:
			err = c.simpleCommand(action, args, 2, "Usage: MSG <threadtitle> <message>")
		case protocol.DeleteMessage:
			err = c.simpleCommand(action, args, 2, "Usage: DLT <threadtitle> <messagenumber>")
		case protocol.EditMessage:
			if len(args) < 3 {
				c.printf("Usage: EDT <threadtitle> <messagenumber> <message>\n")
				continue
			}
			if _, convErr := strconv.Atoi(args[1]); convErr != nil {
				c.printf("Message number must be an integer\n")
				continue
			}
			err = c.simpleCommand(action, args, 3, "")
		case protocol.ListThreads:
			if len(args) != 0 {
				c.printf("Usage: LST\n")
				continue
			}
			err = c.listThreads()
		case protocol.ReadThread:
			if len(args) < 1 {
				c.printf("Usage: RDT <threadtitle>\n")
				continue
			}
			err = c.readThread(content)
		case protocol.Upload:
			if len(args) < 2 {
				c.printf("Usage: UPD <threadtitle> <filename>\n")
				continue
			}
			err = c.upload(args[0], args[1])
		case protocol.Download:
			if len(args) < 2 {
				c.printf("Usage: DWN <threadtitle> <filename>\n")
				continue
			}
			err = c.download(args[0], args[1])
		case protocol.RemoveThread:
			err = c.simpleCommand(action, args, 1, "Usage: RMV <threadtitle>")
		case protocol.Exit:
			if _, sendErr := c.exec(protocol.Exit, "exit"); sendErr != nil {
				return sendErr
			}
			c.printf("Goodbye\n")
			return nil
		}

		if errors.Is(err, ErrUnauthenticated) {
			c.printf("%s\n", err)
			continue
		}
		if err != nil {
			return err
		}
	}
}

// simpleCommand covers the operations whose reply content is printed as-is.
func (c *CLI) simpleCommand(action protocol.Action, args []string, minArgs int, usage string) error {
	if len(args) < minArgs {
		c.printf("%s\n", usage)
		return nil
	}
	reply, err := c.exec(action, strings.Join(args, " "))
	if err != nil {
		return err
	}
	c.printf("%s\n", reply.Content)
	return nil
}

func (c *CLI) listThreads() error {
	reply, err := c.exec(protocol.ListThreads, "")
	if err != nil {
		return err
	}
	if reply.Status == protocol.Failure {
		c.printf("%s\n", reply.Content)
		return nil
	}
	c.printf("Currently active threads:\n")
	for _, title := range strings.Split(reply.Content, " ") {
		c.printf("%s\n", title)
	}
	return nil
}

func (c *CLI) readThread(content string) error {
	reply, err := c.exec(protocol.ReadThread, content)
	if err != nil {
		return err
	}
	if reply.Status == protocol.Failure {
		c.printf("%s\n", reply.Content)
		return nil
	}
	for _, line := range strings.Split(reply.Content, ";") {
		c.printf("%s\n", line)
	}
	return nil
}

func (c *CLI) upload(title, filename string) error {
	path := filepath.Join(c.cfg.Client.DownloadDir, filename)
	src, err := os.Open(path)
	if err != nil {
		c.printf("Cannot find file in source directory path.\n")
		return nil
	}
	defer src.Close()

	reply, sendErr := c.exec(protocol.Upload, title+" "+filename)
	if sendErr != nil {
		return sendErr
	}
	if reply.Status == protocol.Failure {
		c.printf("%s\n", reply.Content)
		return nil
	}

	token, err := ParseReadyToken(reply.Content)
	if err != nil {
		return err
	}
	if err := c.transfer.Upload(token, src); err != nil {
		return err
	}

	if _, ok := c.requester.AwaitAck(c.cfg.Client.AckTimeout()); !ok {
		c.printf("Warning: no confirmation - assuming success.\n")
	}
	c.printf("%s successfully uploaded to %s thread\n", filename, title)
	return nil
}

func (c *CLI) download(title, filename string) error {
	path := filepath.Join(c.cfg.Client.DownloadDir, filename)
	if _, err := os.Stat(path); err == nil {
		c.printf("File already exists in current directory.\n")
		return nil
	}

	reply, err := c.exec(protocol.Download, title+" "+filename)
	if err != nil {
		return err
	}
	if reply.Status == protocol.Failure {
		c.printf("%s\n", reply.Content)
		return nil
	}

	token, err := ParseReadyToken(reply.Content)
	if err != nil {
		return err
	}

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create download target: %w", err)
	}
	if err := c.transfer.Download(token, dst); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	if _, ok := c.requester.AwaitAck(c.cfg.Client.AckTimeout()); !ok {
		c.printf("Warning: no confirmation from server, assuming success.\n")
	}
	c.printf("%s successfully downloaded to working directory.\n", filename)
	return nil
}
