// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newCmdCompletion() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion",
		Short: "Generates autocompletion scripts for bash and zsh",
	}

	cmd.AddCommand(newCmdCompletionBash())
	cmd.AddCommand(newCmdCompletionZsh())

	return cmd
}

func newCmdCompletionBash() *cobra.Command {
	return &cobra.Command{
		Use:   "bash",
		Short: "Generates the bash autocompletion scripts",
		Long: `To load completion, run

. <(docrelay completion bash)

To configure your bash shell to load completions for each session, add the above line to your ~/.bashrc
`,
		Run: func(command *cobra.Command, args []string) {
			rootCmd.GenBashCompletion(os.Stdout)
		},
	}
}

func newCmdCompletionZsh() *cobra.Command {
	return &cobra.Command{
		Use:   "zsh",
		Short: "Generates the zsh autocompletion scripts",
		Long: `To load completion, run

. <(docrelay completion zsh)

To configure your zsh shell to load completions for each session, add the above line to your ~/.zshrc
`,
		Run: func(command *cobra.Command, args []string) {
			os.Stdout.Write([]byte(zshInitialization))
			rootCmd.GenBashCompletion(os.Stdout)
			os.Stdout.Write([]byte(zshTail))
		},
	}
}

const zshInitialization = `
__docrelay_bash_source() {
	alias shopt=':'
	alias _expand=_bash_expand
	alias _complete=_bash_comp
	emulate -L sh
	setopt kshglob noshglob braceexpand
	source "$@"
}
__docrelay_type() {
	if [ "$1" == "-t" ]; then
		shift
		if [ "$1" = "__docrelay_compopt" ]; then
			echo builtin
			return 0
		fi
	fi
	type "$@"
}
__docrelay_compgen() {
	local completions w
	completions=( $(compgen "$@") ) || return $?
	while [[ "$1" = -* && "$1" != -- ]]; do
		shift
		shift
	done
	if [[ "$1" == -- ]]; then
		shift
	fi
	for w in "${completions[@]}"; do
		if [[ "${w}" = "$1"* ]]; then
			echo "${w}"
		fi
	done
}
__docrelay_compopt() {
	true
}
__docrelay_declare() {
	if [ "$1" == "-F" ]; then
		whence -w "$@"
	else
		builtin declare "$@"
	fi
}
__docrelay_ltrim_colon_completions()
{
	if [[ "$1" == *:* && "$COMP_WORDBREAKS" == *:* ]]; then
		local colon_word=${1%${1##*:}}
		local i=${#COMPREPLY[*]}
		while [[ $((--i)) -ge 0 ]]; do
			COMPREPLY[$i]=${COMPREPLY[$i]#"$colon_word"}
		done
	fi
}
__docrelay_get_comp_words_by_ref() {
	cur="${COMP_WORDS[COMP_CWORD]}"
	prev="${COMP_WORDS[${COMP_CWORD}-1]}"
	words=("${COMP_WORDS[@]}")
	cword=("${COMP_CWORD[@]}")
}
__docrelay_filedir() {
	local RET OLD_IFS w qw
	__debug "_filedir $@ cur=$cur"
	if [[ "$1" = \~* ]]; then
		eval echo "$1"
		return 0
	fi
	OLD_IFS="$IFS"
	IFS=$'\n'
	if [ "$1" = "-d" ]; then
		shift
		RET=( $(compgen -d) )
	else
		RET=( $(compgen -f) )
	fi
	IFS="$OLD_IFS"
	IFS="," __debug "RET=${RET[@]} len=${#RET[@]}"
	for w in ${RET[@]}; do
		if [[ ! "${w}" = "${cur}"* ]]; then
			continue
		fi
		if eval "[[ \"\${w}\" = *.$1 || -d \"\${w}\" ]]"; then
			qw="$(__docrelay_quote "${w}")"
			if [ -d "${w}" ]; then
				COMPREPLY+=("${qw}/")
			else
				COMPREPLY+=("${qw}")
			fi
		fi
	done
}
__docrelay_quote() {
    if [[ $1 == \'* || $1 == \"* ]]; then
        printf %q "${1:1}"
    else
    	printf %q "$1"
    fi
}
autoload -U +X bashcompinit && bashcompinit
LWORD='[[:<:]]'
RWORD='[[:>:]]'
if sed --help 2>&1 | grep -q GNU; then
	LWORD='\<'
	RWORD='\>'
fi
__docrelay_convert_bash_to_zsh() {
	sed \
	-e 's/declare -F/whence -w/' \
	-e 's/local \([a-zA-Z0-9_]*\)=/local \1; \1=/' \
	-e 's/flags+=("\(--.*\)=")/flags+=("\1"); two_word_flags+=("\1")/' \
	-e 's/must_have_one_flag+=("\(--.*\)=")/must_have_one_flag+=("\1")/' \
	-e "s/${LWORD}_filedir${RWORD}/__docrelay_filedir/g" \
	-e "s/${LWORD}_get_comp_words_by_ref${RWORD}/__docrelay_get_comp_words_by_ref/g" \
	-e "s/${LWORD}__ltrim_colon_completions${RWORD}/__docrelay_ltrim_colon_completions/g" \
	-e "s/${LWORD}compgen${RWORD}/__docrelay_compgen/g" \
	-e "s/${LWORD}compopt${RWORD}/__docrelay_compopt/g" \
	-e "s/${LWORD}declare${RWORD}/__docrelay_declare/g" \
	-e "s/\\\$(type${RWORD}/\$(__docrelay_type/g" \
	<<'BASH_COMPLETION_EOF'
`

const zshTail = `
BASH_COMPLETION_EOF
}
__docrelay_bash_source <(__docrelay_convert_bash_to_zsh)
`
