// Command biogit is a thin shell over the repository and client
// packages (spec.md §6's CLI verb list is an external interface
// contract only; argv parsing itself is out of scope per spec.md §1).
// It uses jessevdk/go-flags for process-level flag parsing, matching
// go-git's own cli/go-git tool, not for reimplementing git's UX.
package main

import (
	"fmt"
	"os"

	"github.com/biogit/biogit/client"
	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/repo"
	"github.com/jessevdk/go-flags"
)

type options struct {
	RepoDir  string `short:"C" long:"repo" description:"path to the working copy" default:"."`
	Username string `short:"u" long:"username" description:"server username for push/fetch/pull/clone"`
	Password string `short:"p" long:"password" description:"server password for push/fetch/pull/clone"`
	PoolSize int    `long:"pool-size" description:"connections used for object transfer" default:"4"`
}

var opts options

func openRepo() (*repo.Repository, error) { return repo.Open(opts.RepoDir) }

func fail(err error) {
	fmt.Fprintln(os.Stderr, "biogit:", err)
	os.Exit(1)
}

type initCmd struct{}

func (c *initCmd) Execute(args []string) error {
	_, err := repo.Init(opts.RepoDir)
	return err
}

type addCmd struct{}

func (c *addCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	return r.Add(args)
}

type rmCmd struct{}

func (c *rmCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	return r.Remove(args)
}

type commitCmd struct {
	Message string `short:"m" long:"message" required:"true"`
}

func (c *commitCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	sig := object.Signature{Name: r.Config.User.Name, Email: r.Config.User.Email, When: repo.Now()}
	h, err := r.Commit(sig, c.Message)
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}

type statusCmd struct{}

func (c *statusCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	entries, err := r.Status()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%-18s %s\n", e.Status, e.Path)
	}
	return nil
}

type logCmd struct{}

func (c *logCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	head, err := r.Refs.ResolveHEAD()
	if err != nil {
		return err
	}
	entries, err := r.Log(head)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("commit %s\n", e.Hash)
		fmt.Printf("Author: %s\n\n    %s\n\n", e.Commit.Author, e.Commit.Message)
	}
	return nil
}

type diffCmd struct {
	Staged bool `long:"staged"`
}

func (c *diffCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	mode := repo.DiffWorkdirVsIndex
	var c1, c2 hash.Hash
	switch {
	case c.Staged:
		mode = repo.DiffStagedVsHEAD
	case len(args) >= 1:
		mode = repo.DiffCommitVsCommit
		if c1, err = hash.FromHex(args[0]); err != nil {
			return err
		}
		if len(args) >= 2 {
			if c2, err = hash.FromHex(args[1]); err != nil {
				return err
			}
			args = args[2:]
		} else {
			args = args[1:]
		}
	}
	out, err := r.Diff(mode, c1, c2, args)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

type branchCmd struct {
	Delete      bool `short:"d" long:"delete"`
	ForceDelete bool `short:"D" long:"force-delete"`
}

func (c *branchCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: branch requires exactly one name", errs.ErrInvalidPath)
	}
	if c.Delete || c.ForceDelete {
		return r.DeleteBranch(args[0])
	}
	return r.Branch(args[0])
}

type switchCmd struct{}

func (c *switchCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: switch requires exactly one branch name", errs.ErrInvalidPath)
	}
	return r.Switch(args[0])
}

type tagCmd struct {
	Delete bool `short:"d" long:"delete"`
}

func (c *tagCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: tag requires exactly one name", errs.ErrInvalidPath)
	}
	if c.Delete {
		return r.DeleteTag(args[0])
	}
	return r.Tag(args[0])
}

type mergeCmd struct{}

func (c *mergeCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: merge requires exactly one ref", errs.ErrInvalidPath)
	}
	theirs, err := r.Refs.ReadRef(args[0])
	if err != nil {
		theirs, err = hash.FromHex(args[0])
		if err != nil {
			return err
		}
	}
	result, err := r.Merge(theirs)
	fmt.Println(result)
	return err
}

type remoteCmd struct{}

func (c *remoteCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("%w: remote requires add|remove <name> [url]", errs.ErrInvalidPath)
	}
	switch args[0] {
	case "add":
		if len(args) != 3 {
			return fmt.Errorf("%w: remote add <name> <url>", errs.ErrInvalidPath)
		}
		return r.AddRemote(args[1], args[2])
	case "remove":
		return r.RemoveRemote(args[1])
	default:
		return fmt.Errorf("%w: unknown remote subcommand %q", errs.ErrInvalidPath, args[0])
	}
}

type configCmd struct{}

func (c *configCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	switch len(args) {
	case 1:
		v, ok := r.Config.Get(args[0])
		if !ok {
			return fmt.Errorf("%w: config key %q", errs.ErrNotFound, args[0])
		}
		fmt.Println(v)
		return nil
	case 2:
		if err := r.Config.Set(args[0], args[1]); err != nil {
			return err
		}
		return r.SaveConfig()
	default:
		return fmt.Errorf("%w: config <key> [value]", errs.ErrInvalidPath)
	}
}

type pushCmd struct {
	Force bool `short:"f" long:"force"`
}

func (c *pushCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	remoteName, localRef, remoteRef, err := pushPullArgs(args)
	if err != nil {
		return err
	}
	return client.Push(r, remoteName, opts.Username, opts.Password, localRef, remoteRef, c.Force, opts.PoolSize)
}

type fetchCmd struct{}

func (c *fetchCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	remoteName, only := "origin", ""
	if len(args) >= 1 {
		remoteName = args[0]
	}
	if len(args) >= 2 {
		only = args[1]
	}
	return client.Fetch(r, remoteName, opts.Username, opts.Password, only, opts.PoolSize)
}

type pullCmd struct{}

func (c *pullCmd) Execute(args []string) error {
	r, err := openRepo()
	if err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: pull <remote> <branch>", errs.ErrInvalidPath)
	}
	result, err := client.Pull(r, args[0], args[1], opts.Username, opts.Password, opts.PoolSize)
	fmt.Println(result)
	return err
}

type cloneCmd struct{}

func (c *cloneCmd) Execute(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: clone <url> <target_dir>", errs.ErrInvalidPath)
	}
	_, err := client.Clone(args[0], args[1], opts.Username, opts.Password, opts.PoolSize)
	return err
}

type loginCmd struct{}

func (c *loginCmd) Execute(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: login <addr>", errs.ErrInvalidPath)
	}
	conn, err := client.DialTimeout(args[0], 0)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Login(opts.Username, opts.Password)
}

type registerCmd struct{}

func (c *registerCmd) Execute(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: register <addr>", errs.ErrInvalidPath)
	}
	conn, err := client.DialTimeout(args[0], 0)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Register(opts.Username, opts.Password)
}

// pushPullArgs accepts either "<remote> <local_ref> <remote_ref>" or
// "<remote> <ref>" (shorthand for the same ref on both sides).
func pushPullArgs(args []string) (remoteName, localRef, remoteRef string, err error) {
	switch len(args) {
	case 2:
		return args[0], args[1], args[1], nil
	case 3:
		return args[0], args[1], args[2], nil
	default:
		return "", "", "", fmt.Errorf("%w: push <remote> <ref> [<remote_ref>]", errs.ErrInvalidPath)
	}
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	mustCommand(parser, "init", "Create a new repository", &initCmd{})
	mustCommand(parser, "add", "Stage paths", &addCmd{})
	mustCommand(parser, "rm", "Unstage and delete paths", &rmCmd{})
	mustCommand(parser, "commit", "Create a commit from the staged tree", &commitCmd{})
	mustCommand(parser, "status", "Show workdir/index status", &statusCmd{})
	mustCommand(parser, "log", "Show commit history", &logCmd{})
	mustCommand(parser, "diff", "Show changes", &diffCmd{})
	mustCommand(parser, "branch", "Create or delete a branch", &branchCmd{})
	mustCommand(parser, "switch", "Switch to a branch", &switchCmd{})
	mustCommand(parser, "tag", "Create or delete a tag", &tagCmd{})
	mustCommand(parser, "merge", "Merge a ref into the current branch", &mergeCmd{})
	mustCommand(parser, "remote", "Add or remove a remote", &remoteCmd{})
	mustCommand(parser, "config", "Get or set a config key", &configCmd{})
	mustCommand(parser, "push", "Push to a remote", &pushCmd{})
	mustCommand(parser, "fetch", "Fetch from a remote", &fetchCmd{})
	mustCommand(parser, "pull", "Fetch and merge from a remote", &pullCmd{})
	mustCommand(parser, "clone", "Clone a remote repository", &cloneCmd{})
	mustCommand(parser, "login", "Authenticate against a server", &loginCmd{})
	mustCommand(parser, "register", "Register a new server account", &registerCmd{})

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		fail(err)
	}
}

func mustCommand(parser *flags.Parser, name, short string, data interface{}) {
	if _, err := parser.AddCommand(name, short, short, data); err != nil {
		fail(err)
	}
}
