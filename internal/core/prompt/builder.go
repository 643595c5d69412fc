package prompt

import "strings"

// DefaultDelimiter は断片同士を結合する既定の区切り文字列
const DefaultDelimiter = "\n\n"

// Render は断片を入力順にレンダリングし、delimiter で結合する
// 断片の並べ替え・重複排除・組み合わせの検証は行わない
func Render(fragments []Fragment, delimiter string) string {
	if len(fragments) == 0 {
		return ""
	}

	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = f.Render()
	}
	return strings.Join(parts, delimiter)
}

// Builder は断片の列を保持し、1つのプロンプト文字列へ組み立てる
// Builder 自身も Fragment なので入れ子にできる
type Builder struct {
	fragments []Fragment
	delimiter string
}

// BuilderOption は Builder 構築時のオプション
type BuilderOption func(*Builder)

// WithDelimiter は区切り文字列を差し替える
func WithDelimiter(delimiter string) BuilderOption {
	return func(b *Builder) {
		b.delimiter = delimiter
	}
}

// NewBuilder は新しい Builder を作成する
func NewBuilder(fragments []Fragment, opts ...BuilderOption) *Builder {
	b := &Builder{
		fragments: append([]Fragment(nil), fragments...),
		delimiter: DefaultDelimiter,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append は最終レンダリングの前に断片を末尾へ追加する
// 追加すると循環する Builder (b 自身や b を含む Builder) は無視する
func (b *Builder) Append(fragments ...Fragment) *Builder {
	for _, f := range fragments {
		if nested, ok := f.(*Builder); ok && nested.contains(b) {
			continue
		}
		b.fragments = append(b.fragments, f)
	}
	return b
}

// contains は target が b 自身か、b の中に入れ子で含まれているかを返す
func (b *Builder) contains(target *Builder) bool {
	if b == target {
		return true
	}
	for _, f := range b.fragments {
		if nested, ok := f.(*Builder); ok && nested.contains(target) {
			return true
		}
	}
	return false
}

// Len は保持している断片数を返す
func (b *Builder) Len() int {
	return len(b.fragments)
}

// Delimiter は区切り文字列を返す
func (b *Builder) Delimiter() string {
	return b.delimiter
}

// Fragments は保持している断片のコピーを返す
func (b *Builder) Fragments() []Fragment {
	return append([]Fragment(nil), b.fragments...)
}

// Render は保持している断片を区切り文字列で結合した結果を返す
func (b *Builder) Render() string {
	return Render(b.fragments, b.delimiter)
}

func (b *Builder) String() string { return b.Render() }
func (*Builder) isFragment()      {}
