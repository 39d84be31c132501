package buffer

// Lua snippets executed through nvim_exec_lua. Arguments arrive as `...`.

const stateLua = `
local from_marks = ...
local win = vim.api.nvim_get_current_win()
local buf = vim.api.nvim_win_get_buf(win)
local cur = vim.api.nvim_win_get_cursor(win)
local state = {
	win = win,
	buf = buf,
	name = vim.api.nvim_buf_get_name(buf),
	filetype = vim.bo[buf].filetype,
	tick = vim.api.nvim_buf_get_changedtick(buf),
	mode = vim.api.nvim_get_mode().mode,
	row = cur[1] - 1,
	col = cur[2],
}
if from_marks then
	local s = vim.api.nvim_buf_get_mark(buf, "<")
	local e = vim.api.nvim_buf_get_mark(buf, ">")
	state.mode = vim.fn.visualmode()
	state.anchor_row, state.anchor_col = s[1] - 1, s[2]
	state.row, state.col = e[1] - 1, e[2]
elseif state.mode == "v" or state.mode == "V" or state.mode == "\22" then
	local v = vim.fn.getpos("v")
	state.anchor_row, state.anchor_col = v[2] - 1, v[3] - 1
end
return state
`

const isCurrentLua = `
local win, buf = ...
return vim.api.nvim_get_current_win() == win and vim.api.nvim_win_get_buf(win) == buf
`

const setSelectionLua = `
local win, visual, arow, acol, crow, ccol = ...
if not vim.api.nvim_win_is_valid(win) then
	return
end
vim.api.nvim_win_call(win, function()
	local mode = vim.api.nvim_get_mode().mode
	if mode == "v" or mode == "V" or mode == "\22" then
		vim.cmd("normal! " .. vim.api.nvim_replace_termcodes("<Esc>", true, false, true))
	end
	vim.api.nvim_win_set_cursor(win, { arow + 1, acol })
	if visual then
		vim.cmd("normal! v")
		vim.api.nvim_win_set_cursor(win, { crow + 1, ccol })
	end
end)
`

const previewLua = `
local win, buf, ns, srow, scol, erow, ecol = ...
vim.api.nvim_buf_clear_namespace(buf, ns, 0, -1)
if srow ~= erow or scol ~= ecol then
	vim.api.nvim_buf_set_extmark(buf, ns, srow, scol, {
		end_row = erow,
		end_col = ecol,
		hl_group = "Visual",
		priority = 200,
	})
end
if vim.api.nvim_win_is_valid(win) then
	vim.api.nvim_win_set_cursor(win, { srow + 1, scol })
end
`

const requestCodeActionsLua = `
local chan, req_id, uri, srow, scol, erow, ecol, kind = ...
local bufnr = vim.uri_to_bufnr(uri)
local function reply(json, err)
	vim.fn.rpcnotify(chan, "intellirefactor_code_actions", req_id, json, err)
end
local clients = vim.lsp.get_clients({ bufnr = bufnr, method = "textDocument/codeAction" })
if #clients == 0 then
	reply("[]", "")
	return
end
local function slim(a)
	if type(a.command) == "string" then
		return { title = a.title, command = a.command }
	end
	return { title = a.title, kind = a.kind, isPreferred = a.isPreferred == true, disabled = a.disabled }
end
local actions, errors, remaining = {}, {}, #clients
for _, client in ipairs(clients) do
	local enc = client.offset_encoding or "utf-16"
	local ns = vim.lsp.diagnostic.get_namespace(client.id)
	local diags = {}
	for row = srow, erow do
		vim.list_extend(diags, vim.diagnostic.get(bufnr, { namespace = ns, lnum = row }))
	end
	local params = {
		textDocument = { uri = uri },
		range = {
			start = { line = srow, character = vim.lsp.util.character_offset(bufnr, srow, scol, enc) },
			["end"] = { line = erow, character = vim.lsp.util.character_offset(bufnr, erow, ecol, enc) },
		},
		context = {
			diagnostics = vim.lsp.diagnostic.from(diags),
			only = kind ~= "" and { kind } or nil,
			triggerKind = 1,
		},
	}
	client:request("textDocument/codeAction", params, function(err, result)
		if err then
			table.insert(errors, client.name .. ": " .. (err.message or tostring(err)))
		end
		for _, a in ipairs(result or {}) do
			table.insert(actions, slim(a))
		end
		remaining = remaining - 1
		if remaining == 0 then
			reply(#actions > 0 and vim.json.encode(actions) or "[]", table.concat(errors, "; "))
		end
	end, bufnr)
end
`

const executeCodeActionLua = `
local win, kind, preferred, apply, has_range, srow, scol, erow, ecol = ...
local function run()
	local opts = { apply = apply }
	if kind ~= "" then
		opts.context = { only = { kind } }
	end
	if preferred then
		opts.filter = function(a)
			return a.isPreferred == true
		end
	end
	if has_range then
		opts.range = { start = { srow + 1, scol }, ["end"] = { erow + 1, ecol } }
	end
	vim.lsp.buf.code_action(opts)
end
if vim.api.nvim_win_is_valid(win) then
	vim.api.nvim_win_call(win, run)
else
	run()
end
`

const showPickerLua = `
local chan, title, lines, details, active, ns = ...
local old = _G.__intellirefactor_picker
if old and vim.api.nvim_win_is_valid(old.win) then
	old.done = true
	pcall(vim.api.nvim_win_close, old.win, true)
end
local buf = vim.api.nvim_create_buf(false, true)
vim.api.nvim_buf_set_lines(buf, 0, -1, false, lines)
for i, d in ipairs(details) do
	if d ~= "" then
		vim.api.nvim_buf_set_extmark(buf, ns, i - 1, 0, { virt_text = { { d, "Comment" } }, virt_text_pos = "eol" })
	end
end
vim.bo[buf].modifiable = false
vim.bo[buf].bufhidden = "wipe"
local width = vim.fn.strdisplaywidth(title) + 2
for i, l in ipairs(lines) do
	local d = details[i] or ""
	width = math.max(width, vim.fn.strdisplaywidth(l) + (d ~= "" and vim.fn.strdisplaywidth(d) + 2 or 0))
end
width = math.max(1, math.min(width, vim.o.columns - 4))
local win = vim.api.nvim_open_win(buf, true, {
	relative = "cursor",
	row = 1,
	col = 0,
	width = width,
	height = math.min(#lines, 15),
	style = "minimal",
	border = "rounded",
	title = " " .. title .. " ",
})
vim.wo[win].cursorline = true
vim.api.nvim_win_set_cursor(win, { active + 1, 0 })
local state = { win = win, done = false }
_G.__intellirefactor_picker = state
local function send(event, index)
	if state.done then
		return
	end
	if event ~= "active" then
		state.done = true
	end
	vim.fn.rpcnotify(chan, "intellirefactor_picker", event, index)
end
local function index()
	return vim.api.nvim_win_get_cursor(win)[1] - 1
end
local opts = { buffer = buf, nowait = true, silent = true }
vim.keymap.set("n", "<CR>", function() send("accept", index()) end, opts)
for _, key in ipairs({ "<Esc>", "q", "<C-c>" }) do
	vim.keymap.set("n", key, function() send("cancel", -1) end, opts)
end
vim.api.nvim_create_autocmd("CursorMoved", { buffer = buf, callback = function() send("active", index()) end })
vim.api.nvim_create_autocmd("WinLeave", { buffer = buf, once = true, callback = function() send("cancel", -1) end })
`

const closePickerLua = `
local origin, buf, ns = ...
local state = _G.__intellirefactor_picker
_G.__intellirefactor_picker = nil
if state then
	state.done = true
	if vim.api.nvim_win_is_valid(state.win) then
		vim.api.nvim_win_close(state.win, true)
	end
end
if vim.api.nvim_buf_is_valid(buf) then
	vim.api.nvim_buf_clear_namespace(buf, ns, 0, -1)
end
if vim.api.nvim_win_is_valid(origin) then
	vim.api.nvim_set_current_win(origin)
end
`

const setupLua = `
local chan, name, ids = ...
vim.api.nvim_create_user_command(name, function(opts)
	vim.fn.rpcnotify(chan, "intellirefactor_invoke", opts.args, opts.range > 0)
end, {
	nargs = 1,
	range = true,
	desc = "Run a syntax-aware refactoring",
	complete = function(lead)
		return vim.tbl_filter(function(id) return vim.startswith(id, lead) end, ids)
	end,
})
local group = vim.api.nvim_create_augroup("IntelliRefactor", { clear = true })
vim.api.nvim_create_autocmd("FocusLost", {
	group = group,
	callback = function() vim.fn.rpcnotify(chan, "intellirefactor_event", "focus_lost") end,
})
`

const notifyLua = `
local msg = ...
vim.notify(msg, vim.log.levels.ERROR, { title = "IntelliRefactor" })
`
