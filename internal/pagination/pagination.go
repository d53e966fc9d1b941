// Package pagination は一覧表示のページウィンドウ計算を提供する。
//
// ウィンドウ計算とページ番号リスト生成はいずれも純粋関数で、
// ストレージやHTTP層には依存しない。currentPage >= 1 は呼び出し側の
// 契約であり、このパッケージはクランプを行わない（HTTP境界で
// ページ番号を1に丸めてから呼び出すこと）。
package pagination

// NeighborRadius はページ番号リストで現在ページの前後に表示する
// ページ数（省略記号圧縮の近傍半径）。
const NeighborRadius = 2

// Window は1ページ分の取得範囲と表示メタデータを表す。
// 永続化されない導出値。
type Window struct {
	CurrentPage int
	PageSize    int
	TotalCount  int

	// StartIndex/EndIndexは半開区間 [StartIndex, EndIndex)。
	// EndIndexはTotalCountを超えることがある。
	StartIndex int
	EndIndex   int

	TotalPages  int
	HasPrevPage bool
	HasNextPage bool
}

// Paginate はページウィンドウを計算する。
//
//	StartIndex = (currentPage-1) * pageSize
//	EndIndex   = StartIndex + pageSize
//	TotalPages = ceil(totalCount / pageSize)（totalCount=0のとき0）
//
// currentPageは1以上、pageSizeは1以上、totalCountは0以上であること。
// currentPage < 1 の呼び出しは契約違反であり、HTTP境界で事前に
// クランプされている前提で動作する。
func Paginate(currentPage, pageSize, totalCount int) Window {
	start := (currentPage - 1) * pageSize
	totalPages := (totalCount + pageSize - 1) / pageSize

	return Window{
		CurrentPage: currentPage,
		PageSize:    pageSize,
		TotalCount:  totalCount,
		StartIndex:  start,
		EndIndex:    start + pageSize,
		TotalPages:  totalPages,
		HasPrevPage: currentPage > 1,
		HasNextPage: currentPage < totalPages,
	}
}

// ShownRange は「N件中 X〜Y件を表示」のXとYを返す。
// 現在ページの取得結果が空の場合は(0, 0)を返す。
func (w Window) ShownRange(fetchedCount int) (from, to int) {
	if fetchedCount == 0 {
		return 0, 0
	}
	to = w.EndIndex
	if to > w.TotalCount {
		to = w.TotalCount
	}
	return w.StartIndex + 1, to
}

// PageItem はページ番号リストの1要素。ページ番号または省略記号を表す。
type PageItem struct {
	Page     int
	Ellipsis bool
}

// PageNumbers は省略記号圧縮付きのページ番号リストを生成する。
//
// 現在ページの前後NeighborRadiusページの範囲を常に含み、範囲外に
// ページが残る場合は先頭ページ・末尾ページを追加する。追加した端と
// 範囲の間に2ページ以上の隙間がある場合のみ省略記号を挿入する。
// 例: currentPage=5, totalPages=20 → [1, …, 4, 5, 6, …, 20]。
// totalPagesが近傍範囲に収まる場合は全ページをそのまま列挙する。
func PageNumbers(currentPage, totalPages int) []PageItem {
	windowStart := currentPage - NeighborRadius
	if windowStart < 1 {
		windowStart = 1
	}
	windowEnd := currentPage + NeighborRadius
	if windowEnd > totalPages {
		windowEnd = totalPages
	}

	var items []PageItem

	if windowStart > 1 {
		items = append(items, PageItem{Page: 1})
		if windowStart > 2 {
			items = append(items, PageItem{Ellipsis: true})
		}
	}

	for p := windowStart; p <= windowEnd; p++ {
		items = append(items, PageItem{Page: p})
	}

	if windowEnd < totalPages {
		if windowEnd < totalPages-1 {
			items = append(items, PageItem{Ellipsis: true})
		}
		items = append(items, PageItem{Page: totalPages})
	}

	return items
}
