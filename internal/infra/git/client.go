package git

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	giturls "github.com/whilp/git-urls"
)

// Client は Git リポジトリ操作を提供する
type Client struct {
	sshKeyPath  string
	sshPassword string
	progress    io.Writer
}

// ClientOption は Client のオプション設定
type ClientOption func(*Client)

// WithSSHKey はSSH認証に使う秘密鍵を設定する
func WithSSHKey(path, password string) ClientOption {
	return func(c *Client) {
		c.sshKeyPath = path
		c.sshPassword = password
	}
}

// WithProgress はクローンの進捗出力先を設定する
func WithProgress(w io.Writer) ClientOption {
	return func(c *Client) {
		c.progress = w
	}
}

// NewClient は新しい Client を作成する
func NewClient(opts ...ClientOption) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URLToDirectoryName はGit URLをディレクトリ名に変換する
// 例: git@github.com:user/repo.git -> github.com/user/repo
func (c *Client) URLToDirectoryName(gitURL string) (string, error) {
	u, err := giturls.Parse(gitURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse git URL: %w", err)
	}

	hostname := u.Hostname()
	if hostname == "" {
		hostname = u.Host
	}

	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")

	return filepath.Join(hostname, path), nil
}

// CloneOptions はクローンの設定
type CloneOptions struct {
	// Ref はブランチまたはタグ名。空の場合はリモートのHEAD
	Ref string
	// Depth は取得する履歴の深さ。0 は全履歴
	Depth int
}

// Clone は Git リポジトリを destDir にクローンする
func (c *Client) Clone(ctx context.Context, url, destDir string, opts CloneOptions) error {
	auth, err := c.getSSHAuth()
	if err != nil {
		return fmt.Errorf("failed to setup SSH auth: %w", err)
	}

	cloneOpts := &git.CloneOptions{
		URL:          url,
		Depth:        opts.Depth,
		SingleBranch: opts.Ref != "",
		Progress:     c.progress,
	}
	// nil の *ssh.PublicKeys をそのまま渡すと非nilのインターフェースになる
	if auth != nil {
		cloneOpts.Auth = auth
	}
	if opts.Ref != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Ref)
	}

	if _, err := git.PlainCloneContext(ctx, destDir, false, cloneOpts); err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	return nil
}

// HeadCommit はクローン済みリポジトリのHEADのコミットハッシュを返す
func (c *Client) HeadCommit(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

func (c *Client) getSSHAuth() (*ssh.PublicKeys, error) {
	if c.sshKeyPath == "" {
		return nil, nil
	}

	if _, err := os.Stat(c.sshKeyPath); os.IsNotExist(err) {
		return nil, nil
	}

	auth, err := ssh.NewPublicKeysFromFile("git", c.sshKeyPath, c.sshPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}

	return auth, nil
}
