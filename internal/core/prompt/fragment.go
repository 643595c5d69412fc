package prompt

import (
	"fmt"
	"strings"
)

// Fragment はシステムプロンプトを構成する1つの指示断片
// 実装はこのパッケージ内の型に限定される
type Fragment interface {
	// Render は断片を文字列に変換する。構築済みの断片に対して失敗しない
	Render() string

	isFragment()
}

// Literal は与えられたテキストをそのまま出力する断片
type Literal struct {
	text string
}

// NewLiteral は新しいLiteralを作成する
func NewLiteral(text string) Literal {
	return Literal{text: text}
}

func (l Literal) Render() string { return l.text }
func (l Literal) String() string { return l.Render() }
func (Literal) isFragment()      {}

// Role はモデルに役割を割り当てる断片
type Role struct {
	role string
}

// NewRole は新しいRoleを作成する
func NewRole(role string) Role {
	return Role{role: role}
}

func (r Role) Render() string { return fmt.Sprintf("Assume you are a %s.", r.role) }
func (r Role) String() string { return r.Render() }
func (Role) isFragment()      {}

// Task はタスク内容を指示する断片
type Task struct {
	task string
}

// NewTask は新しいTaskを作成する
func NewTask(task string) Task {
	return Task{task: task}
}

func (t Task) Render() string { return fmt.Sprintf("Your task is to %s.", t.task) }
func (t Task) String() string { return t.Render() }
func (Task) isFragment()      {}

// FewShot は回答例を列挙する断片
type FewShot struct {
	examples []string
}

// NewFewShot は新しいFewShotを作成する
// 例が1つもない場合は ErrInvalidArgument を返す
func NewFewShot(examples ...string) (FewShot, error) {
	if len(examples) == 0 {
		return FewShot{}, fmt.Errorf("%w: few-shot prompt needs at least one example", ErrInvalidArgument)
	}

	return FewShot{examples: append([]string(nil), examples...)}, nil
}

// Examples は保持している例のコピーを返す
func (f FewShot) Examples() []string {
	return append([]string(nil), f.examples...)
}

func (f FewShot) Render() string {
	if len(f.examples) == 1 {
		return "Here is an example:\n" + f.examples[0]
	}

	lines := make([]string, 0, len(f.examples))
	for i, example := range f.examples {
		lines = append(lines, fmt.Sprintf("Example %d: %s", i+1, example))
	}
	return "Here are some examples:\n" + strings.Join(lines, "\n")
}

func (f FewShot) String() string { return f.Render() }
func (FewShot) isFragment()      {}

// NoOtherWords は余計な文言を付けずに回答させる断片
type NoOtherWords struct{}

// NewNoOtherWords は新しいNoOtherWordsを作成する
func NewNoOtherWords() NoOtherWords {
	return NoOtherWords{}
}

func (NoOtherWords) Render() string   { return "Reply as requested, NO OTHER WORDS." }
func (n NoOtherWords) String() string { return n.Render() }
func (NoOtherWords) isFragment()      {}

// BestEffort は RequestDict で件数を指定せず可能な限り多く返させる場合の count
const BestEffort = -1

// descriptionNotProvided は説明が空のキーに使うプレースホルダ
const descriptionNotProvided = "[description not provided]"

// RequestDict は key: value 形式の構造化出力を要求する断片
type RequestDict struct {
	keys         []string
	descriptions []string // nil は説明なしを表す
	count        int
}

// NewRequestDict は新しいRequestDictを作成する
//
// descriptions が nil の場合はキー名だけを列挙する。nil でない場合は keys と
// 同じ長さでなければならない。count は 1 以上か BestEffort を指定する。
func NewRequestDict(keys []string, descriptions []string, count int) (RequestDict, error) {
	if descriptions != nil && len(descriptions) != len(keys) {
		return RequestDict{}, fmt.Errorf("%w: descriptions should have same length as keys (keys=%d, descriptions=%d)",
			ErrInvalidArgument, len(keys), len(descriptions))
	}
	if count <= 0 && count != BestEffort {
		return RequestDict{}, fmt.Errorf("%w: count must be greater than zero or %d (best effort), got %d",
			ErrInvalidArgument, BestEffort, count)
	}

	d := RequestDict{
		keys:  append([]string(nil), keys...),
		count: count,
	}
	if descriptions != nil {
		d.descriptions = append([]string{}, descriptions...)
	}
	return d, nil
}

func (d RequestDict) Render() string {
	var sb strings.Builder

	sb.WriteString("Your reply should be in key: value manner.")
	sb.WriteString(" When returning multiple occurrences, add a newline between occurrences.")
	if d.count == BestEffort {
		sb.WriteString(" Reply as many occurrences as you can.")
	} else {
		sb.WriteString(fmt.Sprintf(" Reply %d occurrences.", d.count))
	}

	if d.descriptions == nil {
		sb.WriteString(fmt.Sprintf(" The keys are as follows: %s.", strings.Join(d.keys, ", ")))
		return sb.String()
	}

	sb.WriteString(" The keys and their descriptions are as follows:\n")
	lines := make([]string, 0, len(d.keys))
	for i, key := range d.keys {
		desc := d.descriptions[i]
		if desc == "" {
			desc = descriptionNotProvided
		}
		lines = append(lines, fmt.Sprintf("%s: %s", key, desc))
	}
	sb.WriteString(strings.Join(lines, "\n"))

	return sb.String()
}

func (d RequestDict) String() string { return d.Render() }
func (RequestDict) isFragment()      {}

// インターフェース実装の確認
var (
	_ Fragment = Literal{}
	_ Fragment = Role{}
	_ Fragment = Task{}
	_ Fragment = FewShot{}
	_ Fragment = NoOtherWords{}
	_ Fragment = RequestDict{}
	_ Fragment = (*Builder)(nil)
)
