package rewrite

import (
	"testing"

	"github.com/starford/wikisync/internal/slug"
)

func newTestRewriter() *Rewriter {
	return New(slug.Slugger{FilterToken: "software-"}, nil, DefaultStripSections)
}

func TestRewrite_EmbedWithAlias(t *testing.T) {
	got := newTestRewriter().Rewrite("Look: ![[a/b.png|caption]]")
	if want := "Look: ![caption](./a-b.png)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_EmbedWithoutAlias(t *testing.T) {
	got := newTestRewriter().Rewrite("![[Trip.png]]")
	if want := "![Trip.png](./trip.png)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_Links(t *testing.T) {
	got := newTestRewriter().Rewrite("See [[Other Note]] and [[Other Note|the other one]].")
	want := "See [Other Note](./other-note) and [the other one](./other-note)."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_AliasKeepsLaterPipes(t *testing.T) {
	got := newTestRewriter().Rewrite("[[Table|a|b]]")
	if want := "[a|b](./table)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_FilterTokenRemoved(t *testing.T) {
	got := newTestRewriter().Rewrite("[[Software Guide]] ![[software-arch.svg]]")
	want := "[Software Guide](./guide) ![software-arch.svg](./arch.svg)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_RestoresCollapsedExtension(t *testing.T) {
	got := newTestRewriter().Rewrite("![[Drawing png]] [[Scan pdf|scan]]")
	want := "![Drawing png](./drawing.png) [scan](./scan.pdf)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRestoreExtensions_LeavesProseAlone(t *testing.T) {
	r := newTestRewriter()
	in := "convert my-png files, see [x](./img-jpeg) and [y](http://e.com/a-png)"
	want := "convert my-png files, see [x](./img.jpeg) and [y](http://e.com/a-png)"
	if got := r.RestoreExtensions(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewrite_StripsExcalidrawData(t *testing.T) {
	in := "# Drawing\ntext\n# Excalidraw Data\n## Text Elements\n```json\n{}\n```\n"
	if got := newTestRewriter().Rewrite(in); got != "# Drawing\ntext\n" {
		t.Errorf("got %q", got)
	}
}

func TestRewrite_PlainTextUnchanged(t *testing.T) {
	in := "# Title\n\nJust prose with [a normal link](https://example.com) and `code`.\n"
	if got := newTestRewriter().Rewrite(in); got != in {
		t.Errorf("plain text changed: %q", got)
	}
}

func TestRewrite_EmptyTargetsLeftAlone(t *testing.T) {
	in := "![[]] and [[|alias]]"
	if got := newTestRewriter().Rewrite(in); got != in {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestRewrite_IdempotentOnceMarkupIsGone(t *testing.T) {
	r := newTestRewriter()
	once := r.Rewrite("![[a/b.png|caption]] then [[Note]]")
	if twice := r.Rewrite(once); twice != once {
		t.Errorf("second rewrite changed output: %q -> %q", once, twice)
	}
}

func TestNew_CustomFixTable(t *testing.T) {
	r := New(slug.Slugger{}, []ExtensionFix{{Suffix: "-heic", Extension: ".heic"}}, nil)
	if got := r.Rewrite("![[photo heic]] ![[shot png]]"); got != "![photo heic](./photo.heic) ![shot png](./shot-png)" {
		t.Errorf("got %q", got)
	}
}
